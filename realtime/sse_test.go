package realtime

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

type stubAuth struct{}

func (stubAuth) UserIDFromAuthHeader(h string) (string, error) {
	if h != "Bearer good" {
		return "", errors.New("bad token")
	}
	return "u1", nil
}

type stubAuthz struct{ err error }

func (s stubAuthz) AuthorizeTopic(context.Context, string, string) error { return s.err }

type stubSubs struct{ q *Queue[domain.Event] }

func (s stubSubs) Subscribe(string) *Queue[domain.Event] { return s.q }

func serveStream(subs Subscriber, authz TopicAuthorizer, target string) *httptest.ResponseRecorder {
	e := echo.New()
	Register(e, subs, stubAuth{}, authz, log.New())
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestStreamRejectsBadRequests(t *testing.T) {
	q := NewQueue[domain.Event](1, nil)
	cases := []struct {
		name   string
		target string
		authz  TopicAuthorizer
		status int
	}{
		{"missing token", "/stream?topic=project_chat:p1", stubAuthz{}, http.StatusUnauthorized},
		{"bad topic", "/stream?token=good&topic=bogus", stubAuthz{}, http.StatusBadRequest},
		{"not member", "/stream?token=good&topic=project_chat:p1", stubAuthz{err: domain.ErrNotFound}, http.StatusForbidden},
		{"lookup failure", "/stream?token=good&topic=project_chat:p1", stubAuthz{err: errors.New("db down")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := serveStream(stubSubs{q}, tc.authz, tc.target)
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, rec.Code)
		}
	}
}

func TestStreamWritesEventFrames(t *testing.T) {
	q := NewQueue[domain.Event](4, nil)
	q.Push(domain.Event{Topic: "project_chat:p1", Type: domain.EventInsert, EntityID: "m1"})
	_ = q.Close()
	rec := serveStream(stubSubs{q}, stubAuthz{}, "/stream?token=good&topic=project_chat:p1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: insert\ndata: {") || !strings.Contains(body, `"entityId":"m1"`) {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestStreamForwardsLagAndKeepAlive(t *testing.T) {
	old := KeepAlive
	KeepAlive = 20 * time.Millisecond
	defer func() { KeepAlive = old }()

	q := NewQueue[domain.Event](1, nil)
	e := echo.New()
	Register(e, stubSubs{q}, stubAuth{}, stubAuthz{}, log.New())
	srv := httptest.NewServer(e)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream?topic=project_tasks:p1", nil)
	req.Header.Set("Authorization", "Bearer good")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	q.MarkLagged()
	sc := bufio.NewScanner(resp.Body)
	var sawLag, sawKeepAlive bool
	deadline := time.After(2 * time.Second)
	lines := make(chan string)
	go func() {
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()
	for !(sawLag && sawKeepAlive) {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("stream ended early")
			}
			if line == "event: "+LagEvent {
				sawLag = true
			}
			if line == ": keep-alive" {
				sawKeepAlive = true
			}
		case <-deadline:
			t.Fatalf("lag=%v keepalive=%v", sawLag, sawKeepAlive)
		}
	}
}
