// SPDX-License-Identifier: MIT

package device

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// decodeResult flattens <CGI_Result><k>v</k>...</CGI_Result> into a map and
// returns the numeric <result> separately.
func decodeResult(body []byte) (int, map[string]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	out := make(map[string]string)

	depth := 0
	var key string
	var text strings.Builder
	sawRoot := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				sawRoot = true
			}
			if depth == 2 {
				key = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth == 2 {
				text.Write(t)
			}
		case xml.EndElement:
			if depth == 2 {
				out[key] = strings.TrimSpace(text.String())
			}
			depth--
		}
	}

	if !sawRoot {
		return 0, nil, fmt.Errorf("%w: empty document", ErrBadResponse)
	}
	raw, ok := out["result"]
	if !ok {
		return 0, nil, fmt.Errorf("%w: missing result", ErrBadResponse)
	}
	code, err := strconv.Atoi(raw)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: result %q", ErrBadResponse, raw)
	}
	delete(out, "result")
	return code, out, nil
}
