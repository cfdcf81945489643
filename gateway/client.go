// Package gateway is the client side of the VESS API: record reads and
// writes over HTTP and the realtime stream over SSE.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

const maxErrorBody = 64 << 10

// TokenSource returns the bearer token for the current session.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken always returns token.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

type Config struct {
	// BaseURL points at the API service, e.g. http://localhost:8080.
	BaseURL string
	// StreamURL points at the stream service. Defaults to BaseURL.
	StreamURL  string
	Token      TokenSource
	HTTPClient *http.Client
	Logger     *log.Logger
	// QueueSize bounds each subscription backlog.
	QueueSize int
	// Reconnect is the pause before reopening a dropped stream.
	Reconnect time.Duration
}

// Client talks to the API and stream services on behalf of one session.
type Client struct {
	base      *url.URL
	stream    *url.URL
	token     TokenSource
	http      *http.Client
	noFollow  *http.Client
	logger    *log.Logger
	queueSize int
	reconnect time.Duration
}

func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	stream := base
	if cfg.StreamURL != "" {
		stream, err = url.Parse(strings.TrimRight(cfg.StreamURL, "/"))
		if err != nil || stream.Scheme == "" || stream.Host == "" {
			return nil, fmt.Errorf("invalid stream url %q", cfg.StreamURL)
		}
	}
	if cfg.Token == nil {
		return nil, errors.New("token source is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	noFollow := *hc
	noFollow.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	logger := cfg.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	reconnect := cfg.Reconnect
	if reconnect <= 0 {
		reconnect = time.Second
	}
	return &Client{
		base:      base,
		stream:    stream,
		token:     cfg.Token,
		http:      hc,
		noFollow:  &noFollow,
		logger:    logger,
		queueSize: cfg.QueueSize,
		reconnect: reconnect,
	}, nil
}

// Error is a non-2xx API response. It unwraps to the matching domain error.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	switch {
	case e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity:
		return domain.NewValidationError(e.Message)
	case e.Status == http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case e.Status == http.StatusForbidden:
		return domain.ErrForbidden
	case e.Status == http.StatusNotFound:
		return domain.ErrNotFound
	case e.Status == http.StatusConflict:
		return domain.ErrDuplicate
	case e.Status == http.StatusBadGateway || e.Status == http.StatusServiceUnavailable || e.Status == http.StatusGatewayTimeout:
		return domain.ErrNetwork
	case e.Status >= 500:
		return domain.ErrPersistence
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, base *url.URL, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := *base
	u.Path = base.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	token, err := c.token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) send(hc *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := hc.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	return resp, nil
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := sonic.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, c.base, method, path, query, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.send(c.http, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return decodeBody(resp.Body, out)
}

func decodeBody(r io.Reader, out any) error {
	if err := sonic.ConfigStd.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrNetwork, err)
	}
	return nil
}

func readError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Error string `json:"error"`
	}
	msg := ""
	if sonic.Unmarshal(data, &body) == nil {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &Error{Status: resp.StatusCode, Message: msg}
}

// InsertRecord posts payload to path and returns the stored record.
func InsertRecord[T any](ctx context.Context, c *Client, path string, payload any) (T, error) {
	var out T
	err := c.do(ctx, http.MethodPost, path, nil, payload, &out)
	return out, err
}

// FetchRecords lists the records at path filtered by query.
func FetchRecords[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var out []T
	if err := c.do(ctx, http.MethodGet, path, query, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// UpdateRecord applies fields to the record at path using method (PATCH or
// POST for action routes) and returns the updated record.
func UpdateRecord[T any](ctx context.Context, c *Client, method, path string, fields any) (T, error) {
	var out T
	err := c.do(ctx, method, path, nil, fields, &out)
	return out, err
}

// DeleteRecord removes the record at path.
func DeleteRecord(ctx context.Context, c *Client, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}
