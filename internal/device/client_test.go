// SPDX-License-Identifier: MIT

package device

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/camsync/internal/ftpx"
	"github.com/ManuGH/camsync/internal/resilience"
)

type fakeCGI struct {
	mu    sync.Mutex
	calls []string
	last  map[string]string
	reply map[string]string
}

func (f *fakeCGI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != cgiPath {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	cmd := q.Get("cmd")

	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.last = map[string]string{}
	for k := range q {
		f.last[k] = q.Get(k)
	}
	body, ok := f.reply[cmd]
	f.mu.Unlock()

	if q.Get("usr") != "admin" || q.Get("pwd") != "secret" {
		_, _ = fmt.Fprint(w, "<CGI_Result><result>-2</result></CGI_Result>")
		return
	}
	if !ok {
		_, _ = fmt.Fprint(w, "<CGI_Result><result>-1</result></CGI_Result>")
		return
	}
	if cmd == CmdSnapPicture {
		w.Header().Set("Content-Type", "image/jpeg")
	}
	_, _ = fmt.Fprint(w, body)
}

func (f *fakeCGI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestClient(t *testing.T, f *fakeCGI) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return New(Config{
		Host:     "cam.local",
		Username: "admin",
		Password: "secret",
		Timeout:  2 * time.Second,
		BaseURL:  srv.URL,
	})
}

const devStateXML = `<CGI_Result>
    <result>0</result>
    <IOAlarm>0</IOAlarm>
    <motionDetectAlarm>2</motionDetectAlarm>
    <soundAlarm>1</soundAlarm>
    <record>0</record>
    <sdState>1</sdState>
</CGI_Result>`

const devInfoXML = `<CGI_Result>
    <result>0</result>
    <productName>FI9821W</productName>
    <devName>Front%20Door</devName>
    <mac>C4D6553E24F5</mac>
    <firmwareVer>1.11.1.8</firmwareVer>
    <hardwareVer>1.4.1.10</hardwareVer>
</CGI_Result>`

func TestClient_DevState(t *testing.T) {
	c := newTestClient(t, &fakeCGI{reply: map[string]string{CmdDevState: devStateXML}})

	kv, err := c.DevState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2", kv["motionDetectAlarm"])
	assert.Equal(t, "1", kv["soundAlarm"])
	assert.Equal(t, "0", kv["record"])
	assert.NotContains(t, kv, "result")
}

func TestClient_DevInfo(t *testing.T) {
	c := newTestClient(t, &fakeCGI{reply: map[string]string{CmdDevInfo: devInfoXML}})

	info, err := c.DevInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Info{
		MAC:         "C4D6553E24F5",
		Name:        "Front Door",
		Firmware:    "1.11.1.8",
		Hardware:    "1.4.1.10",
		ProductName: "FI9821W",
	}, info)
}

func TestClient_DevInfoWithoutMAC(t *testing.T) {
	c := newTestClient(t, &fakeCGI{reply: map[string]string{
		CmdDevInfo: "<CGI_Result><result>0</result><devName>x</devName></CGI_Result>",
	}})

	_, err := c.DevInfo(context.Background())
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestClient_NonZeroResult(t *testing.T) {
	c := newTestClient(t, &fakeCGI{reply: map[string]string{
		CmdDevState: "<CGI_Result><result>-4</result></CGI_Result>",
	}})

	_, err := c.DevState(context.Background())
	require.ErrorIs(t, err, ErrDeviceResult)

	var derr *Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, CmdDevState, derr.Cmd)
	assert.Equal(t, ResultExecFailed, derr.Code)
}

func TestClient_RejectedCommandsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(&fakeCGI{reply: map[string]string{
		CmdDevState: "<CGI_Result><result>-4</result></CGI_Result>",
	}})
	t.Cleanup(srv.Close)
	cfg := Config{
		Host:             "cam.local",
		Username:         "admin",
		Password:         "secret",
		BaseURL:          srv.URL,
		Timeout:          time.Second,
		BreakerThreshold: 2,
		BreakerReset:     time.Hour,
	}
	c := New(cfg)

	for i := 0; i < 5; i++ {
		_, err := c.DevState(context.Background())
		require.ErrorIs(t, err, ErrDeviceResult)
	}
	assert.Equal(t, resilience.StateClosed, c.BreakerState())

	// Rejected credentials are not a command result and still count.
	cfg.Password = "wrong"
	c = New(cfg)
	for i := 0; i < 2; i++ {
		_, err := c.DevState(context.Background())
		require.ErrorIs(t, err, ErrAuth)
	}
	assert.Equal(t, resilience.StateOpen, c.BreakerState())
}

func TestClient_BadCredentials(t *testing.T) {
	f := &fakeCGI{reply: map[string]string{CmdDevState: devStateXML}}
	c := newTestClient(t, f)
	c.cfg.Password = "wrong"

	_, err := c.DevState(context.Background())
	assert.ErrorIs(t, err, ErrAuth)
}

func TestClient_MalformedBody(t *testing.T) {
	c := newTestClient(t, &fakeCGI{reply: map[string]string{CmdDevState: "<html>oops"}})

	_, err := c.DevState(context.Background())
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestClient_UnreachableTripsBreaker(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := New(Config{Host: "cam.local", BaseURL: base, Timeout: time.Second, BreakerThreshold: 2, BreakerReset: time.Hour})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.DevState(ctx)
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, resilience.StateOpen, c.BreakerState())

	_, err := c.DevState(ctx)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestClient_OpenTransferStartsFTPFirst(t *testing.T) {
	f := &fakeCGI{reply: map[string]string{
		CmdStartFTPServer: "<CGI_Result><result>0</result></CGI_Result>",
	}}
	c := newTestClient(t, f)
	c.cfg.FTPPort = 50021

	dialErr := errors.New("dial refused")
	var got ftpx.Config
	c.dial = func(_ context.Context, cfg ftpx.Config) (*ftpx.Session, error) {
		assert.Equal(t, []string{CmdStartFTPServer}, f.Calls())
		got = cfg
		return nil, dialErr
	}

	s, err := c.OpenTransfer(context.Background())
	assert.Nil(t, s)
	assert.ErrorIs(t, err, dialErr)
	assert.Equal(t, "cam.local", got.Host)
	assert.Equal(t, 50021, got.Port)
	assert.Equal(t, "admin", got.Username)
}

func TestClient_SetMotionDetectionKeepsConfig(t *testing.T) {
	f := &fakeCGI{reply: map[string]string{
		CmdGetMotionConfig: `<CGI_Result><result>0</result><isEnable>0</isEnable><linkage>12</linkage><sensitivity>1</sensitivity></CGI_Result>`,
		CmdSetMotionConfig: "<CGI_Result><result>0</result></CGI_Result>",
	}}
	c := newTestClient(t, f)

	require.NoError(t, c.SetMotionDetection(context.Background(), true))
	assert.Equal(t, []string{CmdGetMotionConfig, CmdSetMotionConfig}, f.Calls())
	assert.Equal(t, "1", f.last["isEnable"])
	assert.Equal(t, "12", f.last["linkage"])
	assert.Equal(t, "1", f.last["sensitivity"])
}

func TestClient_SnapPicture(t *testing.T) {
	c := newTestClient(t, &fakeCGI{reply: map[string]string{CmdSnapPicture: "\xff\xd8JPEG"}})

	img, err := c.SnapPicture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("\xff\xd8JPEG"), img)
}

func TestClient_SnapPictureError(t *testing.T) {
	f := &fakeCGI{reply: map[string]string{}}
	c := newTestClient(t, f)

	_, err := c.SnapPicture(context.Background())
	assert.ErrorIs(t, err, ErrDeviceResult)
}
