package flood

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ircflood/internal/core"
)

// LineWriter writes encoded lines to a client that may stop reading.
// Each write is bounded by the stall check interval; on timeout the unwritten
// tail is retried, so bytes are never dropped, repeated or reordered.
type LineWriter struct {
	conn    net.Conn
	check   time.Duration
	timeout time.Duration
	stats   *Stats
	log     *zerolog.Logger
}

// NewLineWriter wraps conn. A zero check disables write deadlines; a zero
// timeout waits for a stalled client forever.
func NewLineWriter(conn net.Conn, check, timeout time.Duration, stats *Stats, logger *zerolog.Logger) *LineWriter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &LineWriter{conn: conn, check: check, timeout: timeout, stats: stats, log: logger}
}

// Write sends buf completely, or fails with ctx's error or a transport error.
func (w *LineWriter) Write(ctx context.Context, buf []byte) error {
	var stalledSince time.Time
	for len(buf) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		var deadline time.Time
		if w.check > 0 {
			deadline = time.Now().Add(w.check)
		}
		if err := w.conn.SetWriteDeadline(deadline); err != nil {
			return core.TransportError("set write deadline", err)
		}

		n, err := w.conn.Write(buf)
		buf = buf[n:]
		if n > 0 {
			stalledSince = time.Time{}
		}
		if err == nil {
			continue
		}
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			return core.TransportError("write failed", err)
		}

		if stalledSince.IsZero() {
			stalledSince = time.Now()
			if w.stats != nil {
				w.stats.addStall()
			}
			w.log.Debug().Int("pending", len(buf)).Msg("client not reading, holding output")
		}
		if w.timeout > 0 && time.Since(stalledSince) >= w.timeout {
			return core.TransportError("write stalled for "+w.timeout.String(), ErrStalled)
		}
	}
	return nil
}
