package chat

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/arcadian-ai/parley/internal/observe"
)

// Compile-time assertion that StreamClient satisfies Completer.
var _ Completer = (*StreamClient)(nil)

// streamTimeout is the wall-clock limit for one streamed completion. The
// deadline is the only cancellation mechanism mid-stream: a generation that
// has not sent its [DONE] sentinel within this window is abandoned and the
// turn degrades to an empty response.
const streamTimeout = 60 * time.Second

// doneSentinel terminates a server-sent-event completion stream.
const doneSentinel = "[DONE]"

// StreamClient reads a chat completion as a server-sent-event stream over a
// raw TCP connection, forwarding each token fragment to the listener as it
// arrives. The hand-written request avoids net/http's response buffering so
// tokens reach the synthesis path with minimal latency.
type StreamClient struct {
	addr    string
	log     *slog.Logger
	metrics *observe.Metrics
}

// NewStreamClient creates a streaming client for the chat server on the
// given localhost port.
func NewStreamClient(port int, log *slog.Logger) *StreamClient {
	if log == nil {
		log = slog.Default()
	}
	return &StreamClient{
		addr:    fmt.Sprintf("localhost:%d", port),
		log:     log,
		metrics: observe.Default(),
	}
}

type streamFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Complete streams one completion. The accumulated response is returned once
// the [DONE] sentinel arrives; timeout or any transport failure before that
// yields ("", nil) after logging.
func (c *StreamClient) Complete(ctx context.Context, messages []Message, onToken TokenListener) (string, error) {
	payload, err := json.Marshal(completionRequest{Stream: true, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("chat: marshal stream request: %w", err)
	}

	start := time.Now()
	deadline := start.Add(streamTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	conn, err := net.DialTimeout("tcp", c.addr, 5*time.Second)
	if err != nil {
		c.log.Error("chat: dialing stream endpoint failed", "error", err)
		c.metrics.RecordServiceError(ctx, "chat", "dial")
		return "", nil
	}
	defer conn.Close()
	if err := conn.SetDeadline(deadline); err != nil {
		return "", fmt.Errorf("chat: set deadline: %w", err)
	}

	req := fmt.Sprintf("POST /v1/chat/completions HTTP/1.1\r\n"+
		"Host: %s\r\n"+
		"Content-Type: application/json\r\n"+
		"Accept: text/event-stream\r\n"+
		"Connection: close\r\n"+
		"Content-Length: %d\r\n"+
		"\r\n", c.addr, len(payload))
	if _, err := conn.Write(append([]byte(req), payload...)); err != nil {
		c.log.Error("chat: writing stream request failed", "error", err)
		c.metrics.RecordServiceError(ctx, "chat", "write")
		return "", nil
	}

	reader := bufio.NewReader(conn)

	// Consume the status line and headers; event frames follow.
	status, err := reader.ReadString('\n')
	if err != nil {
		c.log.Error("chat: reading stream status failed", "error", err)
		c.metrics.RecordServiceError(ctx, "chat", "read")
		return "", nil
	}
	if !strings.Contains(status, " 200 ") {
		c.log.Error("chat: stream endpoint refused request", "status", strings.TrimSpace(status))
		c.metrics.RecordServiceError(ctx, "chat", "status")
		return "", nil
	}
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			c.log.Error("chat: reading stream headers failed", "error", err)
			return "", nil
		}
		if strings.TrimRight(line, "\r\n") == "" {
			break
		}
	}

	var response strings.Builder
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// Timeout or connection loss before [DONE]: abandon the turn.
			c.log.Warn("chat: stream ended before completion", "error", err,
				"elapsed", time.Since(start))
			c.metrics.RecordServiceError(ctx, "chat", "stream")
			return "", nil
		}
		line = strings.TrimRight(line, "\r\n")

		// Chunked-encoding size lines and keep-alives carry no data prefix.
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		if data == doneSentinel {
			break
		}

		var frame streamFrame
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			c.log.Debug("chat: skipping malformed stream frame", "error", err)
			continue
		}
		if len(frame.Choices) == 0 {
			continue
		}
		token := frame.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		response.WriteString(token)
		if onToken != nil {
			onToken(token)
		}
	}

	if c.metrics.ChatDuration != nil {
		c.metrics.ChatDuration.Record(ctx, time.Since(start).Seconds())
	}
	return response.String(), nil
}
