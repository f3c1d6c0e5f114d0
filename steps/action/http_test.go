package action

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type requestLog struct {
	mu   sync.Mutex
	reqs []string
}

func (l *requestLog) add(r *http.Request, body string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reqs = append(l.reqs, r.Method+" "+r.URL.Path+" "+body)
}

func newTestServer(t *testing.T) (*httptest.Server, *requestLog) {
	t.Helper()
	log := &requestLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		log.add(r, string(body))
		switch r.URL.Path {
		case "/fail":
			w.WriteHeader(http.StatusInternalServerError)
		case "/echo-header":
			_, _ = w.Write([]byte(r.Header.Get("X-Token")))
		case "/json":
			if r.Header.Get("Content-Type") != "application/json" {
				w.WriteHeader(http.StatusUnsupportedMediaType)
				return
			}
			_, _ = w.Write(body)
		default:
			w.Header().Set("X-Result", "ok")
			_, _ = w.Write([]byte("hello"))
		}
	}))
	t.Cleanup(server.Close)
	return server, log
}

func TestHTTPAction_Do(t *testing.T) {
	server, _ := newTestServer(t)
	action := NewHTTPAction(server.Client())
	ctx := context.Background()

	t.Run("GET", func(t *testing.T) {
		out, err := action.Do(ctx, Call{Params: map[string]any{"url": server.URL + "/hello"}, Undo: &undoCollector{}})
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		result := out.(map[string]any)
		if result["status_code"] != http.StatusOK || result["body"] != "hello" {
			t.Errorf("unexpected result: %v", result)
		}
		if headers := result["headers"].(map[string]any); headers["X-Result"] != "ok" {
			t.Errorf("unexpected headers: %v", headers)
		}
	})

	t.Run("headers", func(t *testing.T) {
		out, err := action.Do(ctx, Call{Params: map[string]any{
			"url":     server.URL + "/echo-header",
			"headers": map[string]any{"X-Token": "secret"},
		}, Undo: &undoCollector{}})
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		if body := out.(map[string]any)["body"]; body != "secret" {
			t.Errorf("expected header to be sent, got %v", body)
		}
	})

	t.Run("JSON body", func(t *testing.T) {
		out, err := action.Do(ctx, Call{Params: map[string]any{
			"method": "post",
			"url":    server.URL + "/json",
			"body":   map[string]any{"name": "alice"},
		}, Undo: &undoCollector{}})
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(out.(map[string]any)["body"].(string)), &decoded); err != nil {
			t.Fatalf("invalid echoed JSON: %v", err)
		}
		if decoded["name"] != "alice" {
			t.Errorf("unexpected echoed body: %v", decoded)
		}
	})

	t.Run("error status fails", func(t *testing.T) {
		_, err := action.Do(ctx, Call{Params: map[string]any{"url": server.URL + "/fail"}, Undo: &undoCollector{}})
		if err == nil || !strings.Contains(err.Error(), "500") {
			t.Errorf("expected status error, got %v", err)
		}
	})

	t.Run("invalid params", func(t *testing.T) {
		bad := []map[string]any{
			{},
			{"url": server.URL, "method": "TRACE"},
			{"url": server.URL, "headers": "nope"},
			{"url": server.URL, "undo": "nope"},
			{"url": server.URL, "undo": map[string]any{"method": "DELETE"}},
		}
		for _, params := range bad {
			if _, err := action.Do(ctx, Call{Params: params, Undo: &undoCollector{}}); err == nil {
				t.Errorf("expected error for params %v", params)
			}
		}
	})
}

func TestHTTPAction_Undo(t *testing.T) {
	server, log := newTestServer(t)
	action := NewHTTPAction(server.Client())
	ctx := context.Background()
	undo := &undoCollector{}

	_, err := action.Do(ctx, Call{
		Params: map[string]any{
			"method": "POST",
			"url":    server.URL + "/users",
			"body":   "alice",
			"undo": map[string]any{
				"method": "DELETE",
				"url":    server.URL + "/users/alice",
			},
		},
		Undo: undo,
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if len(undo.fns) != 1 {
		t.Fatalf("expected 1 undo action, got %d", len(undo.fns))
	}
	if err := undo.fns[0](ctx); err != nil {
		t.Fatalf("undo failed: %v", err)
	}

	want := []string{"POST /users alice", "DELETE /users/alice "}
	if strings.Join(log.reqs, "|") != strings.Join(want, "|") {
		t.Errorf("expected requests %q, got %q", want, log.reqs)
	}

	t.Run("failed request registers no undo", func(t *testing.T) {
		undo := &undoCollector{}
		_, err := action.Do(ctx, Call{
			Params: map[string]any{
				"url":  server.URL + "/fail",
				"undo": map[string]any{"url": server.URL + "/cleanup"},
			},
			Undo: undo,
		})
		if err == nil {
			t.Fatal("expected error")
		}
		if len(undo.fns) != 0 {
			t.Errorf("expected no undo action, got %d", len(undo.fns))
		}
	})
}
