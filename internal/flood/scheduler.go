package flood

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sorcix/irc"

	"github.com/vovakirdan/ircflood/internal/core"
	"github.com/vovakirdan/ircflood/internal/proto"
)

// Observer receives scheduler activity, e.g. to export metrics.
type Observer interface {
	ObserveEvent(ctx context.Context, kind core.EventKind)
	ObserveWrite(ctx context.Context, lines, bytes int)
}

// Scheduler runs the flood loop of one session. All fields except Observer,
// Pacer and Log are required.
type Scheduler struct {
	Generator  *core.Generator
	Handshake  *core.Handshake
	Writer     *LineWriter
	Pacer      *Pacer
	Stats      *Stats
	Observer   Observer
	Inbound    <-chan *irc.Message
	ServerName string
	// MaxEvents stops the loop after that many events; 0 means no limit.
	MaxEvents int64
	Batch     int
	Log       *zerolog.Logger
}

// Run emits batches until ctx is done, the client quits, the event budget is
// spent or a write fails. Client traffic is answered between batches.
func (s *Scheduler) Run(ctx context.Context) error {
	batch := max(s.Batch, 1)
	if burst := s.Pacer.Burst(); burst > 0 {
		batch = min(batch, burst)
	}
	buf := make([]byte, 0, batch*(proto.MaxMessageLength+2))
	kinds := make([]core.EventKind, 0, batch)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.drain(ctx); err != nil {
			return err
		}

		n := batch
		if s.MaxEvents > 0 {
			remaining := s.MaxEvents - s.Stats.Events()
			if remaining <= 0 {
				return ErrBudgetExhausted
			}
			n = int(min(int64(n), remaining))
		}
		if err := s.pace(ctx, n); err != nil {
			return err
		}

		buf, kinds = buf[:0], kinds[:0]
		lines := 0
		self := s.Handshake.Identity()
		for range n {
			ev := s.Generator.Next()
			for _, msg := range ev.Messages(s.ServerName, self) {
				buf = proto.AppendLine(buf, msg)
				lines++
			}
			kinds = append(kinds, ev.Kind)
		}

		if err := s.Writer.Write(ctx, buf); err != nil {
			return err
		}
		s.Stats.addOut(lines, len(buf))
		for _, kind := range kinds {
			s.Stats.addEvent(kind)
		}
		if s.Observer != nil {
			s.Observer.ObserveWrite(ctx, lines, len(buf))
			for _, kind := range kinds {
				s.Observer.ObserveEvent(ctx, kind)
			}
		}
	}
}

// drain answers every client message already received without blocking.
func (s *Scheduler) drain(ctx context.Context) error {
	for {
		select {
		case msg, ok := <-s.Inbound:
			if !ok {
				s.Inbound = nil
				return nil
			}
			if err := s.Answer(ctx, msg); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// pace waits until n events may be emitted, answering client traffic meanwhile.
func (s *Scheduler) pace(ctx context.Context, n int) error {
	return s.Idle(ctx, s.Pacer.Reserve(n))
}

// Idle pauses emission for d while still answering client traffic.
func (s *Scheduler) Idle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case msg, ok := <-s.Inbound:
			if !ok {
				s.Inbound = nil
				continue
			}
			if err := s.Answer(ctx, msg); err != nil {
				return err
			}
		}
	}
}

// Answer feeds one client message to the handshake and writes its replies.
// It returns core.ErrClientQuit once the client has quit.
func (s *Scheduler) Answer(ctx context.Context, msg *irc.Message) error {
	s.Stats.addIn(proto.Len(msg) + 2)
	log := s.logger()
	log.Debug().Str("line", msg.String()).Msg("client")

	replies, violation := s.Handshake.Handle(msg)
	if violation != nil {
		log.Warn().Err(violation).Msg("protocol violation")
	}

	var out []*irc.Message
	// A synthetic user holding the client's new nick moves away before the client's NICK is echoed.
	if ev, ok := s.Generator.SetSelf(s.Handshake.Nick()); ok {
		log.Debug().Str("from", ev.Source.Nick).Str("to", ev.NewNick).Msg("renamed user colliding with client nick")
		out = append(out, ev.Messages(s.ServerName, s.Handshake.Identity())...)
	}
	out = append(out, replies...)

	self := s.Handshake.Identity()
	for _, name := range s.Handshake.Parted() {
		if !s.Generator.Population().RetireChannel(name) {
			continue
		}
		log.Debug().Str("channel", name).Msg("client left channel")
		ev := core.Event{Kind: core.KindPart, Source: self, Target: name}
		out = append(out, ev.Messages(s.ServerName, self)...)
	}

	if len(out) > 0 {
		var buf []byte
		for _, line := range out {
			buf = proto.AppendLine(buf, line)
		}
		if err := s.Writer.Write(ctx, buf); err != nil {
			return err
		}
		s.Stats.addOut(len(out), len(buf))
	}

	if s.Handshake.State() == core.StateClosed {
		return core.ErrClientQuit
	}
	return nil
}

func (s *Scheduler) logger() *zerolog.Logger {
	if s.Log == nil {
		nop := zerolog.Nop()
		s.Log = &nop
	}
	return s.Log
}
