package issuer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solar-synergy/dockrelay/internal/pkg/auth"
	"github.com/solar-synergy/dockrelay/internal/relay/core/service"
	relayhttp "github.com/solar-synergy/dockrelay/internal/relay/server/http"
	"github.com/solar-synergy/dockrelay/internal/relay/store/memory"
	"github.com/solar-synergy/dockrelay/pkg/dock"
)

const testSecret = "0123456789abcdef0123"

func newRelay(t *testing.T, a *auth.Authenticator) *httptest.Server {
	t.Helper()
	svc := service.New(memory.New(), service.Config{DedupeWindow: time.Minute})
	srv := httptest.NewServer(relayhttp.NewRouter(relayhttp.RouterConfig{Path: DefaultPath, Auth: a}, svc))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(Config{BaseURL: "hub.local"})
	assert.Error(t, err)
}

func TestIssue(t *testing.T) {
	relay := newRelay(t, nil)
	c := newClient(t, Config{BaseURL: relay.URL, DockID: "BAY-1"})
	ctx := context.Background()

	res, err := c.Issue(ctx, dock.StateUnlocked)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "UNLOCK", res.NewState)
	assert.Equal(t, "BAY-1", res.DockID)
	assert.EqualValues(t, 1, res.Version)
	assert.NotEmpty(t, res.RequestID)

	token, err := c.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "UNLOCK", token)

	res, err = c.Issue(ctx, dock.StateLocked)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Version)

	token, err = c.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "LOCK", token)
}

func TestIssue_RetryWithSameRequestID(t *testing.T) {
	relay := newRelay(t, nil)
	c := newClient(t, Config{BaseURL: relay.URL})
	ctx := context.Background()

	first, err := c.Issue(ctx, dock.StateUnlocked, WithRequestID("req-1"))
	require.NoError(t, err)
	again, err := c.Issue(ctx, dock.StateUnlocked, WithRequestID("req-1"))
	require.NoError(t, err)

	assert.Equal(t, first.Version, again.Version)
	assert.Equal(t, dock.DefaultDockID, again.DockID)
}

func TestIssue_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid state is not sent", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls++ }))
		defer srv.Close()

		_, err := newClient(t, Config{BaseURL: srv.URL}).Issue(ctx, dock.State("OPEN"))
		assert.ErrorIs(t, err, ErrInvalidCommand)
		assert.Zero(t, calls)
	})

	t.Run("conflict", func(t *testing.T) {
		relay := newRelay(t, nil)
		c := newClient(t, Config{BaseURL: relay.URL})
		_, err := c.Issue(ctx, dock.StateUnlocked)
		require.NoError(t, err)

		_, err = c.Issue(ctx, dock.StateLocked, WithIfVersion(0))
		require.ErrorIs(t, err, ErrConflict)

		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusConflict, se.Status)
		assert.EqualValues(t, 1, se.Version)
		assert.Contains(t, UserMessage(err), "version 1")
	})

	t.Run("unauthorized", func(t *testing.T) {
		relay := newRelay(t, auth.NewAuthenticator(testSecret, "dock-relay"))
		_, err := newClient(t, Config{BaseURL: relay.URL}).Issue(ctx, dock.StateUnlocked)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("authorized", func(t *testing.T) {
		a := auth.NewAuthenticator(testSecret, "dock-relay")
		token, err := a.Mint("operator", time.Hour)
		require.NoError(t, err)

		relay := newRelay(t, a)
		c := newClient(t, Config{BaseURL: relay.URL, Token: token})
		_, err = c.Issue(ctx, dock.StateUnlocked)
		require.NoError(t, err)

		view, err := c.Dock(ctx)
		require.NoError(t, err)
		assert.Equal(t, "operator", view.UpdatedBy)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		_, err := newClient(t, Config{BaseURL: srv.URL}).Issue(ctx, dock.StateUnlocked)
		assert.ErrorIs(t, err, ErrUnreachable)
		assert.Equal(t, "Dock relay unreachable. Check the hub connection.", UserMessage(err))
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { <-release }))
		defer srv.Close()
		defer close(release)

		start := time.Now()
		_, err := newClient(t, Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}).Issue(ctx, dock.StateUnlocked)
		assert.ErrorIs(t, err, ErrUnreachable)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

func TestDockListAndAck(t *testing.T) {
	relay := newRelay(t, nil)
	ctx := context.Background()
	bay1 := newClient(t, Config{BaseURL: relay.URL, DockID: "BAY-1"})
	bay2 := newClient(t, Config{BaseURL: relay.URL, DockID: "BAY-2"})

	res, err := bay1.Issue(ctx, dock.StateUnlocked)
	require.NoError(t, err)
	_, err = bay2.Issue(ctx, dock.StateLocked)
	require.NoError(t, err)

	docks, err := bay1.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docks, 2)

	view, err := bay1.Ack(ctx, dock.StateUnlocked, res.Version)
	require.NoError(t, err)
	assert.True(t, view.Converged)
	require.NotNil(t, view.Applied)
	assert.Equal(t, res.Version, view.Applied.Version)
}

type transitions struct {
	mu  sync.Mutex
	got [][2]Connectivity
}

func (tr *transitions) record(from, to Connectivity) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.got = append(tr.got, [2]Connectivity{from, to})
}

func (tr *transitions) list() [][2]Connectivity {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([][2]Connectivity(nil), tr.got...)
}

func TestPollStatus(t *testing.T) {
	var mu sync.Mutex
	mode := "relay"
	relay := newRelay(t, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		m := mode
		mu.Unlock()
		switch m {
		case "html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<!DOCTYPE html><html></html>"))
		case "error":
			w.WriteHeader(http.StatusBadGateway)
		default:
			resp, err := http.Get(relay.URL + r.URL.String())
			if err != nil {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			defer resp.Body.Close()
			w.Header().Set("Content-Type", resp.Header.Get("Content-Type"))
			w.WriteHeader(resp.StatusCode)
		}
	}))
	defer srv.Close()
	setMode := func(m string) {
		mu.Lock()
		mode = m
		mu.Unlock()
	}

	tr := &transitions{}
	c := newClient(t, Config{BaseURL: srv.URL, OnTransition: tr.record})
	ctx := context.Background()

	assert.Equal(t, Unknown, c.Connectivity())
	assert.Equal(t, Online, c.PollStatus(ctx))
	assert.Equal(t, Online, c.PollStatus(ctx))

	setMode("html")
	assert.Equal(t, Offline, c.PollStatus(ctx))

	setMode("relay")
	assert.Equal(t, Online, c.PollStatus(ctx))

	setMode("error")
	assert.Equal(t, Offline, c.PollStatus(ctx))
	assert.Equal(t, Offline, c.Connectivity())

	assert.Equal(t, [][2]Connectivity{
		{Unknown, Online},
		{Online, Offline},
		{Offline, Online},
		{Online, Offline},
	}, tr.list())
}

func TestPollStatus_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := newClient(t, Config{BaseURL: srv.URL})
	assert.Equal(t, Offline, c.PollStatus(context.Background()))
}

func TestPollStatus_Legacy(t *testing.T) {
	body := "LOCK"
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := newClient(t, Config{BaseURL: srv.URL, LegacyProbe: true})
	assert.Equal(t, Online, c.PollStatus(context.Background()))

	mu.Lock()
	body = "\n  <!doctype html><p>Cannot GET /api/status</p>"
	mu.Unlock()
	assert.Equal(t, Offline, c.PollStatus(context.Background()))
}

func TestLooksLikeHTML(t *testing.T) {
	assert.True(t, LooksLikeHTML([]byte("<!DOCTYPE html>")))
	assert.True(t, LooksLikeHTML([]byte("  <!doctype html>")))
	assert.False(t, LooksLikeHTML([]byte("UNLOCK")))
	assert.False(t, LooksLikeHTML([]byte("<html>")))
	assert.False(t, LooksLikeHTML(nil))
}

func TestWatch(t *testing.T) {
	relay := newRelay(t, nil)
	c := newClient(t, Config{BaseURL: relay.URL})

	ctx, cancel := context.WithCancel(context.Background())
	var polls []Connectivity
	err := c.Watch(ctx, 10*time.Millisecond, func(s Connectivity) {
		polls = append(polls, s)
		if len(polls) == 3 {
			cancel()
		}
	})
	require.NoError(t, err)
	assert.Equal(t, []Connectivity{Online, Online, Online}, polls)
}

func TestAwaitApplied(t *testing.T) {
	relay := newRelay(t, nil)
	c := newClient(t, Config{BaseURL: relay.URL, DockID: "BAY-7"})
	ctx := context.Background()

	res, err := c.Issue(ctx, dock.StateUnlocked)
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_, _ = c.Ack(context.Background(), dock.StateUnlocked, res.Version)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	view, err := c.AwaitApplied(waitCtx, res.DockID, res.Version, 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, view.Converged)
}

func TestAwaitApplied_Diverged(t *testing.T) {
	relay := newRelay(t, nil)
	c := newClient(t, Config{BaseURL: relay.URL})
	ctx := context.Background()

	first, err := c.Issue(ctx, dock.StateUnlocked)
	require.NoError(t, err)
	_, err = c.Issue(ctx, dock.StateLocked)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = c.AwaitApplied(waitCtx, first.DockID, first.Version, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrDiverged)
}

func TestAwaitApplied_Timeout(t *testing.T) {
	relay := newRelay(t, nil)
	c := newClient(t, Config{BaseURL: relay.URL})

	res, err := c.Issue(context.Background(), dock.StateUnlocked)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.AwaitApplied(waitCtx, res.DockID, res.Version, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPollStatus_CancelledKeepsState(t *testing.T) {
	relay := newRelay(t, nil)
	c := newClient(t, Config{BaseURL: relay.URL})
	require.Equal(t, Online, c.PollStatus(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, Online, c.PollStatus(ctx))
}

func TestRelayDefaultDock(t *testing.T) {
	svc := service.New(memory.New(), service.Config{DefaultDockID: "bay-9"})
	relay := httptest.NewServer(relayhttp.NewRouter(relayhttp.RouterConfig{Path: DefaultPath}, svc))
	t.Cleanup(relay.Close)

	c := newClient(t, Config{BaseURL: relay.URL})
	ctx := context.Background()

	res, err := c.Issue(ctx, dock.StateUnlocked)
	require.NoError(t, err)
	assert.Equal(t, "bay-9", res.DockID)

	view, err := c.Dock(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bay-9", view.DockID)
	assert.Equal(t, res.Version, view.Version)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_, _ = c.Ack(context.Background(), dock.StateUnlocked, res.Version)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	view, err = c.AwaitApplied(waitCtx, res.DockID, res.Version, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "bay-9", view.DockID)
	assert.True(t, view.Converged)

	assert.Equal(t, Online, c.PollStatus(ctx))
}

func TestAwaitApplied_FollowsResultDock(t *testing.T) {
	relay := newRelay(t, nil)
	writer := newClient(t, Config{BaseURL: relay.URL, DockID: "BAY-3"})
	other := newClient(t, Config{BaseURL: relay.URL, DockID: "BAY-4"})
	ctx := context.Background()

	res, err := writer.Issue(ctx, dock.StateUnlocked)
	require.NoError(t, err)
	_, err = writer.Ack(ctx, dock.StateUnlocked, res.Version)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	view, err := other.AwaitApplied(waitCtx, res.DockID, res.Version, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "BAY-3", view.DockID)
}

func TestIssue_RequestIDReusedForOtherCommand(t *testing.T) {
	relay := newRelay(t, nil)
	c := newClient(t, Config{BaseURL: relay.URL})
	ctx := context.Background()

	_, err := c.Issue(ctx, dock.StateUnlocked, WithRequestID("req-2"))
	require.NoError(t, err)

	_, err = c.Issue(ctx, dock.StateLocked, WithRequestID("req-2"))
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "That request id was already used for a different command.", UserMessage(err))

	token, err := c.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "UNLOCK", token)
}
