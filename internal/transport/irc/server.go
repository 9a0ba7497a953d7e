package irc

import (
	"context"
	"errors"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ircflood/internal/flood"
	"github.com/vovakirdan/ircflood/internal/session"
)

const acceptBackoff = 100 * time.Millisecond

// Observer receives session lifecycle and flood activity.
type Observer interface {
	flood.Observer
	SessionStarted(ctx context.Context)
	SessionEnded(ctx context.Context, reason string)
}

// Config configures the listener.
type Config struct {
	Addr string
	// MaxClients stops accepting after that many connections; 0 means no limit.
	MaxClients int
	// MaxConcurrent is how many sessions run at once. Further clients wait in the accept backlog.
	MaxConcurrent int
	Session       session.Config
}

// Status summarises the listener for the status endpoint.
type Status struct {
	Served   int64          `json:"served"`
	Active   int            `json:"active"`
	Sessions []session.Info `json:"sessions"`
}

// Server accepts IRC clients and runs one flood session per connection.
type Server struct {
	cfg      Config
	observer Observer
	log      *zerolog.Logger

	mu     sync.Mutex
	addr   net.Addr
	active map[string]*session.Session
	served atomic.Int64
	wg     sync.WaitGroup
}

// NewServer builds a listener. observer may be nil.
func NewServer(cfg Config, observer Observer, logger *zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		observer: observer,
		log:      logger,
		active:   make(map[string]*session.Session),
	}
}

// ListenAndServe listens on the configured address and serves until ctx is done
// or the client budget is spent.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln. It closes ln and waits for running
// sessions before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer s.wg.Wait()
	defer ln.Close()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Int("max_clients", s.cfg.MaxClients).
		Int("max_concurrent", s.cfg.MaxConcurrent).
		Msg("irc listener started")

	slots := make(chan struct{}, max(s.cfg.MaxConcurrent, 1))
	accepted := 0
	for s.cfg.MaxClients <= 0 || accepted < s.cfg.MaxClients {
		// Take a slot before accepting so waiting clients stay in the backlog.
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			return nil
		}

		conn, err := ln.Accept()
		if err != nil {
			<-slots
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			s.log.Warn().Err(err).Msg("accept failed")
			select {
			case <-time.After(acceptBackoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		accepted++
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() { <-slots }()
			s.serveConn(ctx, conn)
		}()
	}

	s.log.Info().Int("clients", accepted).Msg("client budget reached, no longer accepting")
	return nil
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	var observer flood.Observer
	if s.observer != nil {
		observer = s.observer
		s.observer.SessionStarted(ctx)
	}

	sess := session.New(conn, s.cfg.Session, observer, s.log)
	s.mu.Lock()
	s.active[sess.ID] = sess
	s.mu.Unlock()

	reason := sess.Run(ctx)

	s.mu.Lock()
	delete(s.active, sess.ID)
	s.mu.Unlock()
	s.served.Add(1)

	if s.observer != nil {
		s.observer.SessionEnded(context.WithoutCancel(ctx), string(reason))
	}
}

// Addr returns the listening address once Serve has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Served returns how many sessions have ended.
func (s *Server) Served() int64 {
	return s.served.Load()
}

// Sessions returns snapshots of the running sessions, oldest first.
func (s *Server) Sessions() []session.Info {
	s.mu.Lock()
	infos := make([]session.Info, 0, len(s.active))
	for _, sess := range s.active {
		infos = append(infos, sess.Info())
	}
	s.mu.Unlock()

	slices.SortFunc(infos, func(a, b session.Info) int {
		return a.Started.Compare(b.Started)
	})
	return infos
}

// Status returns the listener totals and running sessions.
func (s *Server) Status() Status {
	sessions := s.Sessions()
	return Status{Served: s.Served(), Active: len(sessions), Sessions: sessions}
}
