package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/LordOfTheToroids/Quack-Meteor-Madness/internal/metrics"
)

// client wraps a single SSE connection's write side.
type client struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	ip      string
	logger  *slog.Logger
}

// writeTimeout bounds a single SSE write so a stalled client cannot pin the
// goroutine forever.
const writeTimeout = 10 * time.Second

// sendJSON marshals v and writes it as a single SSE data message.
func (c *client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling stream message: %w", err)
	}
	return c.sendRaw(data)
}

// sendRaw writes pre-marshaled bytes as an SSE data message and flushes.
func (c *client) sendRaw(data []byte) error {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err == nil {
		defer c.rc.SetWriteDeadline(time.Time{})
	}

	n, err := fmt.Fprintf(c.w, "data: %s\n\n", data)
	if err != nil {
		return err
	}
	c.flusher.Flush()

	metrics.IncStreamMessages()
	metrics.AddStreamBytes(int64(n))
	return nil
}

// sendKeepalive writes an SSE comment line to keep the connection open
// through idle proxies.
func (c *client) sendKeepalive() error {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err == nil {
		defer c.rc.SetWriteDeadline(time.Time{})
	}

	if _, err := fmt.Fprint(c.w, ": keepalive\n\n"); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}

// writeJSONError writes a JSON error body with the given status.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
