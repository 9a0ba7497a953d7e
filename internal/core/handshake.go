package core

import (
	"fmt"
	"strings"

	"github.com/sorcix/irc"

	"github.com/vovakirdan/ircflood/internal/proto"
)

// State is a Handshake state.
type State int

const (
	StateAwaitingRegistration State = iota
	StateRegistered
	StateFlooding
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingRegistration:
		return "awaiting_registration"
	case StateRegistered:
		return "registered"
	case StateFlooding:
		return "flooding"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DefaultIdent replaces a missing or illegal USER name.
const DefaultIdent = "flood"

// HandshakeConfig configures a Handshake.
type HandshakeConfig struct {
	ServerName string
	Version    string
	// NickInUse is how many NICK attempts are refused with 433 before one is accepted.
	NickInUse  int
	ClientHost string
	// FallbackNick supplies a nickname when the client sends an illegal one.
	FallbackNick func() string
}

// Handshake drives client registration and answers client traffic afterwards.
// Not safe for concurrent use.
type Handshake struct {
	cfg      HandshakeConfig
	state    State
	nick     string
	ident    string
	capOpen  bool
	refused  int
	welcomed int
	parted   []string
}

// NewHandshake returns a handshake awaiting registration.
func NewHandshake(cfg HandshakeConfig) *Handshake {
	if cfg.ServerName == "" {
		cfg.ServerName = "ircflood"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.ClientHost == "" {
		cfg.ClientHost = "localhost"
	}
	if cfg.FallbackNick == nil {
		cfg.FallbackNick = func() string { return "client" }
	}
	return &Handshake{cfg: cfg}
}

// State returns the current state.
func (h *Handshake) State() State { return h.state }

// Nick returns the client's nickname, empty until NICK is accepted.
func (h *Handshake) Nick() string { return h.nick }

// Ident returns the client's user name.
func (h *Handshake) Ident() string { return h.ident }

// Identity returns the client's hostmask.
func (h *Handshake) Identity() Identity {
	return Identity{Nick: h.nick, Ident: h.ident, Host: h.cfg.ClientHost}
}

// Welcomed returns how many welcome sequences were sent.
func (h *Handshake) Welcomed() int { return h.welcomed }

// Handle consumes one client message and returns the replies to send.
// A non-nil error describes a protocol violation that was repaired; the
// replies are still valid and the handshake continues.
func (h *Handshake) Handle(msg *irc.Message) ([]*irc.Message, error) {
	if msg == nil || h.state == StateClosed {
		return nil, nil
	}

	switch strings.ToUpper(msg.Command) {
	case irc.PING:
		return []*irc.Message{h.pong(msg)}, nil
	case irc.QUIT:
		h.state = StateClosed
		return nil, nil
	case irc.PASS:
		return nil, nil
	case proto.CAP:
		if h.state != StateAwaitingRegistration {
			return nil, nil
		}
		return h.handleCap(msg), nil
	case irc.NICK:
		return h.handleNick(msg)
	case irc.USER:
		if h.state != StateAwaitingRegistration {
			return nil, nil
		}
		return h.handleUser(msg)
	case irc.PART:
		if h.state == StateFlooding {
			h.handlePart(msg)
		}
	}
	return nil, nil
}

func (h *Handshake) server() *irc.Prefix {
	return &irc.Prefix{Name: h.cfg.ServerName}
}

func (h *Handshake) target() string {
	if h.nick == "" {
		return "*"
	}
	return h.nick
}

func (h *Handshake) pong(ping *irc.Message) *irc.Message {
	token := proto.Arg(ping, 0)
	if token == "" {
		token = h.cfg.ServerName
	}
	return &irc.Message{
		Prefix:        h.server(),
		Command:       irc.PONG,
		Params:        []string{h.cfg.ServerName},
		Trailing:      token,
		EmptyTrailing: true,
	}
}

func (h *Handshake) handleCap(msg *irc.Message) []*irc.Message {
	sub := strings.ToUpper(proto.Arg(msg, 0))
	switch sub {
	case proto.CapLS, proto.CapList:
		h.capOpen = true
		return []*irc.Message{{
			Prefix:        h.server(),
			Command:       proto.CAP,
			Params:        []string{h.target(), sub},
			EmptyTrailing: true,
		}}
	case proto.CapReq:
		h.capOpen = true
		return []*irc.Message{{
			Prefix:        h.server(),
			Command:       proto.CAP,
			Params:        []string{h.target(), proto.CapNak},
			Trailing:      proto.Arg(msg, 1),
			EmptyTrailing: true,
		}}
	case proto.CapEnd:
		h.capOpen = false
		return h.maybeWelcome()
	}
	return nil
}

func (h *Handshake) handleNick(msg *irc.Message) ([]*irc.Message, error) {
	nick := proto.Arg(msg, 0)

	if h.state == StateAwaitingRegistration && h.refused < h.cfg.NickInUse {
		h.refused++
		return []*irc.Message{{
			Prefix:   h.server(),
			Command:  irc.ERR_NICKNAMEINUSE,
			Params:   []string{h.target(), nick},
			Trailing: "Nickname is already in use",
		}}, nil
	}

	var violation error
	if !proto.IsValidNick(nick) {
		fallback := h.cfg.FallbackNick()
		violation = protocolViolation(fmt.Sprintf("illegal nickname %q, using %q", nick, fallback))
		nick = fallback
	}

	if h.state == StateAwaitingRegistration {
		h.nick = nick
		return h.maybeWelcome(), violation
	}

	old := h.Identity()
	h.nick = nick
	return []*irc.Message{{Prefix: old.Prefix(), Command: irc.NICK, Trailing: nick, EmptyTrailing: true}}, violation
}

func (h *Handshake) handleUser(msg *irc.Message) ([]*irc.Message, error) {
	ident := proto.Arg(msg, 0)
	var violation error
	if !proto.IsValidIdent(ident) {
		violation = protocolViolation(fmt.Sprintf("illegal user name %q, using %q", ident, DefaultIdent))
		ident = DefaultIdent
	}
	h.ident = ident
	return h.maybeWelcome(), violation
}

func (h *Handshake) handlePart(msg *irc.Message) {
	for _, name := range strings.Split(proto.Arg(msg, 0), ",") {
		if proto.IsValidChannel(name) {
			h.parted = append(h.parted, name)
		}
	}
}

// Parted returns the channels the client left since the last call.
func (h *Handshake) Parted() []string {
	parted := h.parted
	h.parted = nil
	return parted
}

func (h *Handshake) maybeWelcome() []*irc.Message {
	if h.state != StateAwaitingRegistration || h.capOpen || h.nick == "" || h.ident == "" {
		return nil
	}
	h.state = StateRegistered
	msgs := h.welcome()
	h.welcomed++
	h.state = StateFlooding
	return msgs
}

func (h *Handshake) welcome() []*irc.Message {
	srv := h.server()
	name := h.cfg.ServerName
	return []*irc.Message{
		{
			Prefix:   srv,
			Command:  irc.RPL_WELCOME,
			Params:   []string{h.nick},
			Trailing: "Welcome to the flood test network " + h.Identity().Prefix().String(),
		},
		{
			Prefix:   srv,
			Command:  irc.RPL_YOURHOST,
			Params:   []string{h.nick},
			Trailing: "Your host is " + name + ", running version " + h.cfg.Version,
		},
		{
			Prefix:   srv,
			Command:  irc.RPL_CREATED,
			Params:   []string{h.nick},
			Trailing: "This server was created just now",
		},
		{
			Prefix:  srv,
			Command: irc.RPL_MYINFO,
			Params:  []string{h.nick, name, h.cfg.Version, "i", "nt"},
		},
	}
}
