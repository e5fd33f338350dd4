package http

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"scribe/internal/config"
	"scribe/internal/jobs"
	"scribe/internal/metrics"
)

const (
	defaultKeepalive   = 15 * time.Second
	defaultIdleTimeout = 60 * time.Second
)

// jobStreamHandler subscribes the caller to a job's progress bus and
// pushes each snapshot as an SSE "progress" event, with periodic
// "ping" keepalives. The stream closes after the terminal event, when
// the client goes away, or when no write has succeeded for a full
// idle window. Transport failures never touch job state; clients
// recover via the status endpoint.
func jobStreamHandler(c *fiber.Ctx) error {
	cfg := c.Locals("config").(*config.Config)
	store := c.Locals("store").(*jobs.Store)

	events, cancel, err := store.Subscribe(c.Params("id"))
	if err != nil {
		return jobNotFound(c)
	}

	keepalive := time.Duration(cfg.Stream.KeepaliveSeconds) * time.Second
	if keepalive <= 0 {
		keepalive = defaultKeepalive
	}
	idle := time.Duration(cfg.Stream.IdleTimeoutSeconds) * time.Second
	if idle <= 0 {
		idle = defaultIdleTimeout
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		metrics.StreamSubscribed(1)
		defer metrics.StreamSubscribed(-1)

		ping := time.NewTicker(keepalive)
		defer ping.Stop()
		deadline := time.NewTimer(idle)
		defer deadline.Stop()

		for {
			select {
			case snap, ok := <-events:
				if !ok {
					// Topic released underneath us (job discarded).
					return
				}
				if err := writeEvent(w, snap); err != nil {
					return
				}
				if snap.Status.Terminal() {
					return
				}
				resetTimer(deadline, idle)
			case <-ping.C:
				if err := writePing(w); err != nil {
					return
				}
				resetTimer(deadline, idle)
			case <-deadline.C:
				// No write has landed for a full idle window; reclaim
				// the abandoned connection.
				return
			}
		}
	}))

	return nil
}

func writeEvent(w *bufio.Writer, snap jobs.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: progress\ndata: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writePing(w *bufio.Writer) error {
	if _, err := fmt.Fprint(w, "event: ping\ndata: {}\n\n"); err != nil {
		return err
	}
	return w.Flush()
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
