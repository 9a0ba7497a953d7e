package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"os"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/sorcix/irc"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/ircflood/internal/core"
	"github.com/vovakirdan/ircflood/internal/flood"
	"github.com/vovakirdan/ircflood/internal/utils"
)

// Reason explains why a session ended.
type Reason string

const (
	ReasonQuit                Reason = "quit received"
	ReasonConnectionLost      Reason = "connection lost"
	ReasonEventBudget         Reason = "event budget reached"
	ReasonTimeBudget          Reason = "time budget reached"
	ReasonRegistrationTimeout Reason = "registration timeout"
	ReasonShutdown            Reason = "shutdown"
	ReasonWriteError          Reason = "write error"
)

const inboundBuffer = 64

var (
	errConnectionLost = errors.New("connection lost")
	errTimeBudget     = errors.New("time budget reached")
)

// Config holds the per-session tunables.
type Config struct {
	ServerName          string
	Version             string
	NickInUse           int
	RegistrationTimeout time.Duration
	Wait                time.Duration
	Mode                flood.Mode
	Delay               time.Duration
	Batch               int
	MaxEvents           int64
	Duration            time.Duration
	StallCheck          time.Duration
	StallTimeout        time.Duration
	// Seed drives all randomness of the session; 0 picks a random seed.
	Seed           uint64
	Population     core.PopulationConfig
	MaxBodyLength  int
	Weights        core.Weights
	UserNotices    bool
	ChannelNotices bool
}

// Info is a snapshot of a running session for the status endpoint.
type Info struct {
	ID      string         `json:"id"`
	Remote  string         `json:"remote"`
	Nick    string         `json:"nick,omitempty"`
	State   string         `json:"state"`
	Seed    uint64         `json:"seed"`
	Started time.Time      `json:"started"`
	Stats   flood.Snapshot `json:"stats"`
}

// Session floods one client connection. It owns the connection, the
// population and the counters, and releases all of them when Run returns.
type Session struct {
	ID   string
	Seed uint64

	cfg      Config
	conn     net.Conn
	remote   string
	stats    *flood.Stats
	observer flood.Observer
	log      zerolog.Logger

	state atomic.Value
	nick  atomic.Value
}

// New prepares a session for conn. observer may be nil.
func New(conn net.Conn, cfg Config, observer flood.Observer, logger *zerolog.Logger) *Session {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	id := utils.NewID()
	remote := conn.RemoteAddr().String()

	s := &Session{
		ID:       id,
		Seed:     seed,
		cfg:      cfg,
		conn:     conn,
		remote:   remote,
		stats:    flood.NewStats(),
		observer: observer,
		log:      logger.With().Str("session", utils.ShortID(id)).Str("remote", remote).Logger(),
	}
	s.state.Store(core.StateAwaitingRegistration.String())
	s.nick.Store("")
	return s
}

// Info returns a snapshot of the session. Safe to call from any goroutine.
func (s *Session) Info() Info {
	return Info{
		ID:      s.ID,
		Remote:  s.remote,
		Nick:    s.nick.Load().(string),
		State:   s.state.Load().(string),
		Seed:    s.Seed,
		Started: s.stats.Start(),
		Stats:   s.stats.Snapshot(),
	}
}

// Run serves the connection until it ends and returns why it ended.
// The connection is closed on return.
func (s *Session) Run(ctx context.Context) Reason {
	defer s.conn.Close()
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	s.log.Info().Uint64("seed", s.Seed).Msg("client connected")

	sched, inbound := s.scheduler()
	dec := irc.NewDecoder(s.conn)

	err := s.register(ctx, dec, sched)
	if err == nil {
		s.setState(core.StateFlooding)
		err = s.flood(ctx, dec, sched, inbound)
	}
	s.setState(core.StateClosed)

	reason := s.classify(ctx, err)
	s.report(reason, err)
	return reason
}

func (s *Session) setState(st core.State) {
	s.state.Store(st.String())
}

func (s *Session) scheduler() (*flood.Scheduler, chan *irc.Message) {
	rng := rand.New(rand.NewPCG(s.Seed, s.Seed)) //nolint:gosec // synthetic traffic, reproducible by seed
	str := core.NewStrings(rng, s.cfg.MaxBodyLength)
	pop := core.NewPopulation(s.cfg.Population, rng, str)
	gen := core.NewGenerator(core.GeneratorConfig{
		Weights:        s.cfg.Weights,
		UserNotices:    s.cfg.UserNotices,
		ChannelNotices: s.cfg.ChannelNotices,
	}, pop, str, rng)

	host, _, err := net.SplitHostPort(s.remote)
	if err != nil {
		host = ""
	}
	hs := core.NewHandshake(core.HandshakeConfig{
		ServerName:   s.cfg.ServerName,
		Version:      s.cfg.Version,
		NickInUse:    s.cfg.NickInUse,
		ClientHost:   strings.Trim(host, "[]"),
		FallbackNick: pop.FreshNick,
	})

	inbound := make(chan *irc.Message, inboundBuffer)
	return &flood.Scheduler{
		Generator:  gen,
		Handshake:  hs,
		Writer:     flood.NewLineWriter(s.conn, s.cfg.StallCheck, s.cfg.StallTimeout, s.stats, &s.log),
		Pacer:      flood.NewPacer(s.cfg.Mode, s.cfg.Delay, s.cfg.Batch),
		Stats:      s.stats,
		Observer:   s.observer,
		Inbound:    inbound,
		ServerName: s.cfg.ServerName,
		MaxEvents:  s.cfg.MaxEvents,
		Batch:      s.cfg.Batch,
		Log:        &s.log,
	}, inbound
}

// register reads client lines until the handshake completes. The whole
// exchange shares one read deadline.
func (s *Session) register(ctx context.Context, dec *irc.Decoder, sched *flood.Scheduler) error {
	if s.cfg.RegistrationTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.RegistrationTimeout)); err != nil {
			return core.TransportError("set read deadline", err)
		}
	}

	for sched.Handshake.State() == core.StateAwaitingRegistration {
		msg, err := dec.Decode()
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return core.RegistrationTimeout(err)
			}
			return readError(err)
		}
		if msg == nil {
			continue
		}
		if err := sched.Answer(ctx, msg); err != nil {
			return err
		}
	}

	if err := s.conn.SetReadDeadline(time.Time{}); err != nil {
		return core.TransportError("clear read deadline", err)
	}
	s.nick.Store(sched.Handshake.Nick())
	s.log.Info().Str("nick", sched.Handshake.Nick()).Msg("client registered")
	return nil
}

// flood runs the reader and the scheduler until either stops.
func (s *Session) flood(ctx context.Context, dec *irc.Decoder, sched *flood.Scheduler, inbound chan<- *irc.Message) error {
	if s.cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, s.cfg.Duration, errTimeBudget)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, func() { s.conn.Close() })
	defer stop()

	g.Go(func() error {
		for {
			msg, err := dec.Decode()
			if err != nil {
				return readError(err)
			}
			if msg == nil {
				continue
			}
			select {
			case inbound <- msg:
			case <-gctx.Done():
				return gctx.Err()
			}
			// Nothing after QUIT matters; let the scheduler see it before the socket closes.
			if msg.Command == irc.QUIT {
				return nil
			}
		}
	})

	g.Go(func() error {
		if s.cfg.Wait > 0 {
			s.log.Info().Dur("wait", s.cfg.Wait).Msg("waiting before flood")
			if err := sched.Idle(gctx, s.cfg.Wait); err != nil {
				return err
			}
		}
		s.log.Info().Msg("flood started")
		return sched.Run(gctx)
	})

	err := g.Wait()
	if errors.Is(context.Cause(ctx), errTimeBudget) {
		return errors.Join(errTimeBudget, err)
	}
	return err
}

func readError(err error) error {
	return core.TransportError("read failed", fmt.Errorf("%w: %w", errConnectionLost, err))
}

func (s *Session) classify(ctx context.Context, err error) Reason {
	switch {
	case errors.Is(err, core.ErrClientQuit):
		return ReasonQuit
	case errors.Is(err, flood.ErrBudgetExhausted):
		return ReasonEventBudget
	case core.HasCode(err, core.ErrCodeRegistrationTimeout):
		return ReasonRegistrationTimeout
	case ctx.Err() != nil:
		return ReasonShutdown
	case errors.Is(err, errTimeBudget):
		return ReasonTimeBudget
	case errors.Is(err, errConnectionLost), peerGone(err):
		return ReasonConnectionLost
	default:
		return ReasonWriteError
	}
}

// peerGone reports whether a write failed because the client went away.
func peerGone(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

func (s *Session) report(reason Reason, err error) {
	snap := s.stats.Snapshot()

	level := zerolog.InfoLevel
	switch reason {
	case ReasonConnectionLost:
		s.log.Warn().Err(err).Msg("no quit received, client crashed?")
	case ReasonWriteError, ReasonRegistrationTimeout:
		level = zerolog.WarnLevel
	default:
		err = nil
	}
	s.log.WithLevel(level).
		Err(err).
		Str("reason", string(reason)).
		Dur("elapsed", time.Duration(snap.ElapsedMs)*time.Millisecond).
		Int64("events", snap.Events).
		Int64("lines_in", snap.LinesIn).
		Int64("bytes_in", snap.BytesIn).
		Int64("lines_out", snap.LinesOut).
		Int64("bytes_out", snap.BytesOut).
		Int64("stalls", snap.Stalls).
		Float64("lines_per_sec", snap.LinesPerSec).
		Float64("bytes_per_sec", snap.BytesPerSec).
		Msg("session ended")
}
