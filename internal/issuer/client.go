// Package issuer is the client side of the dock relay: it writes commands,
// reads dock state and tracks whether the relay is reachable.
package issuer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solar-synergy/dockrelay/pkg/dock"
	"github.com/solar-synergy/dockrelay/pkg/log"
)

const (
	DefaultTimeout       = 7 * time.Second
	DefaultWatchInterval = 30 * time.Second
	DefaultPath          = "/api/status"

	maxResponseBytes = 1 << 20
)

// Config describes how to reach one dock through a relay.
type Config struct {
	// BaseURL is the relay origin, e.g. http://hub.local:8080.
	BaseURL string
	// Path of the command resource on the relay.
	Path string
	// DockID addresses a dock. Empty uses the relay's default dock.
	DockID string
	// Token is sent as a bearer token on writes when set.
	Token string
	// Timeout bounds every request.
	Timeout time.Duration
	// LegacyProbe classifies connectivity by sniffing the bare endpoint
	// for an HTML page instead of requiring the versioned JSON view.
	LegacyProbe bool
	// OnTransition is told about connectivity changes.
	OnTransition TransitionFunc

	HTTPClient *http.Client
}

// Client issues commands to one dock. It never retries a write on its own.
type Client struct {
	cfg   Config
	base  *url.URL
	http  *http.Client
	state *connectivityMachine
	log   log.Logger
}

// Result is an accepted write.
type Result struct {
	dock.CommandResponse
	RequestID string
}

func New(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid relay URL %q", cfg.BaseURL)
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		cfg:   cfg,
		base:  base,
		http:  httpClient,
		state: newConnectivityMachine(cfg.OnTransition),
		log:   log.WithName("issuer").WithValues("relay", cfg.BaseURL),
	}, nil
}

// IssueOption tunes a single write.
type IssueOption func(*dock.CommandRequest)

// WithIfVersion makes the write conditional on the dock's current version.
func WithIfVersion(v uint64) IssueOption {
	return func(r *dock.CommandRequest) { r.IfVersion = &v }
}

// WithRequestID overrides the generated request id, e.g. to retry a write
// whose response was lost.
func WithRequestID(id string) IssueOption {
	return func(r *dock.CommandRequest) { r.RequestID = id }
}

// Issue sends exactly one command write.
func (c *Client) Issue(ctx context.Context, state dock.State, opts ...IssueOption) (*Result, error) {
	if !state.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCommand, state)
	}

	req := dock.CommandRequest{
		Command:   state.Token(),
		DockID:    c.cfg.DockID,
		RequestID: uuid.NewString(),
	}
	for _, o := range opts {
		o(&req)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	var resp dock.CommandResponse
	if err := c.do(ctx, http.MethodPost, c.cfg.Path, nil, body, &resp); err != nil {
		c.log.Warn("Command failed", "command", req.Command, "requestId", req.RequestID, "error", err)
		return nil, err
	}

	c.log.Info("Command accepted", "command", resp.NewState, "dockId", resp.DockID, "version", resp.Version, "requestId", req.RequestID)
	return &Result{CommandResponse: resp, RequestID: req.RequestID}, nil
}

// Token reads the bare command token, exactly as a dock controller does.
func (c *Client) Token(ctx context.Context) (string, error) {
	q := url.Values{}
	if c.cfg.DockID != "" {
		q.Set("dockId", c.cfg.DockID)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.send(ctx, http.MethodGet, c.cfg.Path, q, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if resp.StatusCode/100 != 2 {
		return "", classify(resp.StatusCode, body)
	}
	return string(body), nil
}

// Dock fetches the JSON view of the configured dock.
func (c *Client) Dock(ctx context.Context) (*dock.View, error) {
	return c.view(ctx, c.dockPath())
}

func (c *Client) view(ctx context.Context, path string) (*dock.View, error) {
	var view dock.View
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// List fetches every dock the relay knows.
func (c *Client) List(ctx context.Context) ([]dock.View, error) {
	var list dock.ListResponse
	if err := c.do(ctx, http.MethodGet, c.cfg.Path+"/docks", nil, nil, &list); err != nil {
		return nil, err
	}
	return list.Docks, nil
}

// Ack reports state as applied by the dock's controller.
func (c *Client) Ack(ctx context.Context, state dock.State, version uint64) (*dock.View, error) {
	body, err := json.Marshal(dock.AckRequest{State: state.Token(), Version: version})
	if err != nil {
		return nil, err
	}
	var view dock.View
	if err := c.do(ctx, http.MethodPost, c.dockPath()+"/ack", nil, body, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// dockPath addresses the configured dock, or the relay's own default dock
// when none is configured.
func (c *Client) dockPath() string {
	return c.dockPathFor(c.cfg.DockID)
}

func (c *Client) dockPathFor(id string) string {
	if id == "" {
		return c.cfg.Path + "/dock"
	}
	return c.cfg.Path + "/docks/" + url.PathEscape(id)
}

// do sends one request with the client timeout and decodes a 2xx JSON
// response into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if resp.StatusCode/100 != 2 {
		return classify(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Response, error) {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" && method == http.MethodPost {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return resp, nil
}

func classify(status int, body []byte) error {
	se := &StatusError{Status: status}

	var er dock.ErrorResponse
	if json.Unmarshal(body, &er) == nil {
		se.Message = er.Error
		se.Version = er.Version
	}

	switch {
	case status == http.StatusBadRequest:
		se.Kind = ErrInvalidCommand
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		se.Kind = ErrUnauthorized
	case status == http.StatusConflict:
		se.Kind = ErrConflict
	case status >= 500:
		se.Kind = ErrUnreachable
	default:
		se.Kind = ErrUnexpected
	}
	return se
}

// PollStatus probes the relay once and advances the connectivity state.
// The relay counts as ONLINE only if it answers 2xx with the versioned
// dock view content type.
func (c *Client) PollStatus(ctx context.Context) Connectivity {
	var reachable bool
	if c.cfg.LegacyProbe {
		reachable = c.probeLegacy(ctx)
	} else {
		reachable = c.probe(ctx)
	}
	// A cancelled poll says nothing about the relay.
	if ctx.Err() != nil {
		return c.state.current()
	}

	state, err := c.state.observe(ctx, reachable)
	if err != nil {
		c.log.Error(err, "Failed to record connectivity")
	}
	return state
}

// Connectivity returns the state after the last poll.
func (c *Client) Connectivity() Connectivity {
	return c.state.current()
}

func (c *Client) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.send(ctx, http.MethodGet, c.dockPath(), nil, nil)
	if err != nil {
		c.log.Debug("Probe failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	ct := resp.Header.Get("Content-Type")
	return resp.StatusCode/100 == 2 && strings.HasPrefix(ct, dock.ContentTypeView)
}

// probeLegacy treats anything but an HTML page as a live relay. Proxies and
// dev servers answer unknown paths with an HTML fallback page.
func (c *Client) probeLegacy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.send(ctx, http.MethodGet, c.cfg.Path, nil, nil)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return false
	}
	return !LooksLikeHTML(body)
}

// LooksLikeHTML reports whether body starts with an HTML doctype.
func LooksLikeHTML(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) >= 9 && strings.EqualFold(string(trimmed[:9]), "<!doctype")
}

// Watch polls every interval until ctx is done, calling fn after each poll.
func (c *Client) Watch(ctx context.Context, interval time.Duration, fn func(Connectivity)) error {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		state := c.PollStatus(ctx)
		if fn != nil {
			fn(state)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ErrDiverged is returned by AwaitApplied when the dock was commanded again
// and the awaited version was never applied.
var ErrDiverged = errors.New("dock was commanded again before the awaited version was applied")

// AwaitApplied polls the view of dockID until the controller acknowledges
// version or later, or ctx ends. Pass the DockID of the Result being
// awaited; an empty dockID falls back to the configured dock.
func (c *Client) AwaitApplied(ctx context.Context, dockID string, version uint64, interval time.Duration) (*dock.View, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if dockID == "" {
		dockID = c.cfg.DockID
	}
	path := c.dockPathFor(dockID)

	var last *dock.View
	for {
		view, err := c.view(ctx, path)
		if err != nil {
			c.log.Debug("Polling dock failed", "error", err)
		} else {
			last = view
			if view.Applied != nil && view.Applied.Version >= version {
				return view, nil
			}
		}

		select {
		case <-ctx.Done():
			if last != nil && last.Version > version {
				return last, ErrDiverged
			}
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}
