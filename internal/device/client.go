// SPDX-License-Identifier: MIT

// Package device talks to the camera's CGI control interface and opens
// FTP sessions against its storage.
package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/camsync/internal/log"
	"github.com/ManuGH/camsync/internal/ftpx"
	"github.com/ManuGH/camsync/internal/resilience"
)

const cgiPath = "/cgi-bin/CGIProxy.fcgi"

// CGI commands used by camsync.
const (
	CmdDevState         = "getDevState"
	CmdDevInfo          = "getDevInfo"
	CmdStartFTPServer   = "startFtpServer"
	CmdGetMotionConfig  = "getMotionDetectConfig"
	CmdSetMotionConfig  = "setMotionDetectConfig"
	CmdSnapPicture      = "snapPicture2"
	defaultTimeout      = 10 * time.Second
	defaultBreakerName  = "device"
	defaultBreakerLimit = 5
)

// Config holds connection settings for one camera.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration

	FTPPort  int
	Location *time.Location

	BreakerThreshold int
	BreakerReset     time.Duration

	// BaseURL overrides http://Host:Port.
	BaseURL string
}

// Client implements StatusSource, IdentitySource and TransferOpener.
type Client struct {
	cfg     Config
	http    *resty.Client
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger

	dial func(context.Context, ftpx.Config) (*ftpx.Session, error)
}

// New creates a client. No request is made until the first call.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = defaultBreakerLimit
	}
	base := cfg.BaseURL
	if base == "" {
		base = "http://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	}

	r := resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "camsync")

	return &Client{
		cfg:     cfg,
		http:    r,
		breaker: resilience.NewCircuitBreaker(defaultBreakerName, cfg.BreakerThreshold, cfg.BreakerReset,
			resilience.WithIgnore(answered)),
		logger:  xglog.WithComponent("device").With().Str(xglog.FieldBaseURL, base).Logger(),
		dial:    ftpx.Dial,
	}
}

// answered reports a command the device received and rejected with a
// non-zero result; the breaker skips those.
func answered(err error) bool {
	return errors.Is(err, ErrDeviceResult)
}

// BreakerState reports the state of the circuit breaker guarding the CGI.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// DevState returns the getDevState key/values.
func (c *Client) DevState(ctx context.Context) (map[string]string, error) {
	return c.command(ctx, CmdDevState, nil)
}

// DevInfo returns the device identity. An empty MAC is an error.
func (c *Client) DevInfo(ctx context.Context) (Info, error) {
	kv, err := c.command(ctx, CmdDevInfo, nil)
	if err != nil {
		return Info{}, err
	}
	info := Info{
		MAC:         kv["mac"],
		Name:        unescape(kv["devName"]),
		Firmware:    kv["firmwareVer"],
		Hardware:    kv["hardwareVer"],
		ProductName: kv["productName"],
	}
	if info.MAC == "" {
		return info, &Error{Sentinel: ErrNoIdentity, Cmd: CmdDevInfo}
	}
	return info, nil
}

// StartFTPServer asks the device to start its embedded FTP service.
func (c *Client) StartFTPServer(ctx context.Context) error {
	_, err := c.command(ctx, CmdStartFTPServer, nil)
	return err
}

// OpenTransfer starts the FTP service and dials a session.
func (c *Client) OpenTransfer(ctx context.Context) (TransferSession, error) {
	if err := c.StartFTPServer(ctx); err != nil {
		return nil, err
	}
	s, err := c.dial(ctx, ftpx.Config{
		Host:     c.cfg.Host,
		Port:     c.cfg.FTPPort,
		Username: c.cfg.Username,
		Password: c.cfg.Password,
		Timeout:  c.cfg.Timeout,
		Location: c.cfg.Location,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SetMotionDetection toggles motion detection, keeping every other
// detector setting as the device currently reports it.
func (c *Client) SetMotionDetection(ctx context.Context, enabled bool) error {
	current, err := c.command(ctx, CmdGetMotionConfig, nil)
	if err != nil {
		return err
	}
	current["isEnable"] = "0"
	if enabled {
		current["isEnable"] = "1"
	}
	_, err = c.command(ctx, CmdSetMotionConfig, current)
	return err
}

// SnapPicture returns a JPEG of the current frame.
func (c *Client) SnapPicture(ctx context.Context) ([]byte, error) {
	var body []byte
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := c.do(ctx, CmdSnapPicture, nil)
		if err != nil {
			return err
		}
		ct := resp.Header().Get("Content-Type")
		if strings.HasPrefix(ct, "image/") {
			body = resp.Body()
			return nil
		}
		// Errors come back as a CGI_Result document.
		code, _, derr := decodeResult(resp.Body())
		if derr != nil {
			return &Error{Sentinel: ErrBadResponse, Cmd: CmdSnapPicture, Err: derr}
		}
		return resultError(CmdSnapPicture, code)
	})
	return body, err
}

func (c *Client) command(ctx context.Context, cmd string, params map[string]string) (map[string]string, error) {
	var out map[string]string
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := c.do(ctx, cmd, params)
		if err != nil {
			return err
		}
		code, kv, err := decodeResult(resp.Body())
		if err != nil {
			return &Error{Sentinel: ErrBadResponse, Cmd: cmd, Err: err}
		}
		if code != ResultOK {
			return resultError(cmd, code)
		}
		out = kv
		return nil
	})
	if err != nil {
		c.logger.Debug().Err(err).Str("cmd", cmd).Msg("device command failed")
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, cmd string, params map[string]string) (*resty.Response, error) {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("cmd", cmd)
	q.Set("usr", c.cfg.Username)
	q.Set("pwd", c.cfg.Password)

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(q).
		Get(cgiPath)
	if err != nil {
		return nil, &Error{Sentinel: ErrUnavailable, Cmd: cmd, Err: err}
	}
	c.logger.Debug().
		Str("cmd", cmd).
		Int("status", resp.StatusCode()).
		Dur("duration", time.Since(start)).
		Msg("device command")

	if resp.StatusCode() != http.StatusOK {
		return nil, &Error{Sentinel: ErrUnavailable, Cmd: cmd, Status: resp.StatusCode()}
	}
	return resp, nil
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}

// String is for logs only; credentials are omitted.
func (c *Client) String() string {
	return fmt.Sprintf("device(%s:%d)", c.cfg.Host, c.cfg.Port)
}
