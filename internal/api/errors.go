// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/camsync/internal/device"
	xglog "github.com/ManuGH/camsync/internal/log"
	"github.com/ManuGH/camsync/internal/resilience"
)

type errorBody struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeInternalError(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusInternalServerError, errorBody{
		Error:     "internal_error",
		RequestID: xglog.RequestIDFromContext(r.Context()),
	})
}

func writeBadRequest(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Detail: detail})
}

func writeNotFound(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Detail: detail})
}

// writeDeviceError maps device failures onto gateway style status codes.
func writeDeviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, device.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "device_unavailable", Detail: err.Error()})
	case errors.Is(err, device.ErrAuth):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "device_auth", Detail: err.Error()})
	default:
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "device_error", Detail: err.Error()})
	}
}
