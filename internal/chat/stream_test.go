package chat

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// sseHandler writes the given data frames as a server-sent-event stream.
func sseHandler(t *testing.T, frames []string, done bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("Accept = %q, want text/event-stream", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fl, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("response writer is not a flusher")
		}
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
			fl.Flush()
		}
		if done {
			fmt.Fprint(w, "data: [DONE]\n\n")
			fl.Flush()
		}
	}
}

func deltaFrame(content string) string {
	return fmt.Sprintf(`{"choices":[{"delta":{"content":%q}}]}`, content)
}

func TestStreamClient_AccumulatesTokens(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(sseHandler(t, []string{
		deltaFrame("Hel"),
		deltaFrame("lo "),
		deltaFrame("there."),
	}, true))
	defer srv.Close()

	var tokens []string
	c := NewStreamClient(serverPort(t, srv), nil)
	got, err := c.Complete(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}},
		func(tok string) { tokens = append(tokens, tok) })
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "Hello there." {
		t.Errorf("response = %q, want %q", got, "Hello there.")
	}
	if joined := strings.Join(tokens, ""); joined != "Hello there." {
		t.Errorf("listener saw %q, want %q", joined, "Hello there.")
	}
}

func TestStreamClient_MalformedFramesSkipped(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(sseHandler(t, []string{
		deltaFrame("ok"),
		"{broken json",
		deltaFrame("!"),
	}, true))
	defer srv.Close()

	c := NewStreamClient(serverPort(t, srv), nil)
	got, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "ok!" {
		t.Errorf("response = %q, want %q", got, "ok!")
	}
}

func TestStreamClient_TruncatedStreamYieldsEmpty(t *testing.T) {
	t.Parallel()

	// Connection closes without a [DONE] sentinel.
	srv := httptest.NewServer(sseHandler(t, []string{deltaFrame("partial")}, false))
	defer srv.Close()

	c := NewStreamClient(serverPort(t, srv), nil)
	got, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "" {
		t.Errorf("response = %q, want empty on truncated stream", got)
	}
}

func TestStreamClient_Non200YieldsEmpty(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewStreamClient(serverPort(t, srv), nil)
	got, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "" {
		t.Errorf("response = %q, want empty on non-200", got)
	}
}

func TestStreamClient_DialFailureYieldsEmpty(t *testing.T) {
	t.Parallel()

	// A port with nothing listening.
	c := NewStreamClient(1, nil)
	got, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "" {
		t.Errorf("response = %q, want empty on dial failure", got)
	}
}
