package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"mediaserver/types"
)

// HeartbeatInterval is how often an idle SSE stream gets a comment line
const HeartbeatInterval = 15 * time.Second

// SetSSEHeaders prepares a response for an event stream
func SetSSEHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// WriteEvent writes one event as a "data:" frame
func WriteEvent(w io.Writer, event types.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func writeHeartbeat(w io.Writer) error {
	_, err := io.WriteString(w, ": heartbeat\n\n")
	return err
}

// StreamSSE copies events to w until ctx ends, the inbox is closed or a
// write fails. flush is called after every frame.
func StreamSSE(ctx context.Context, w io.Writer, flush func(), events <-chan types.Event, heartbeat time.Duration) error {
	if heartbeat <= 0 {
		heartbeat = HeartbeatInterval
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := WriteEvent(w, event); err != nil {
				return err
			}
		case <-ticker.C:
			if err := writeHeartbeat(w); err != nil {
				return fmt.Errorf("write heartbeat: %w", err)
			}
		case <-ctx.Done():
			return nil
		}
		if flush != nil {
			flush()
		}
	}
}
