package core

import (
	"strings"

	"github.com/sorcix/irc"

	"github.com/vovakirdan/ircflood/internal/proto"
)

// EventKind tags a Command Event.
type EventKind int

const (
	KindJoin EventKind = iota
	KindPart
	KindQuit
	KindKick
	KindPrivmsg
	KindNotice
	KindNick
	KindPing
	KindSelfJoin
)

// Kinds lists every event kind in declaration order.
var Kinds = []EventKind{
	KindJoin, KindPart, KindQuit, KindKick, KindPrivmsg,
	KindNotice, KindNick, KindPing, KindSelfJoin,
}

func (k EventKind) String() string {
	switch k {
	case KindJoin:
		return "join"
	case KindPart:
		return "part"
	case KindQuit:
		return "quit"
	case KindKick:
		return "kick"
	case KindPrivmsg:
		return "privmsg"
	case KindNotice:
		return "notice"
	case KindNick:
		return "nick"
	case KindPing:
		return "ping"
	case KindSelfJoin:
		return "self_join"
	default:
		return "unknown"
	}
}

// Identity is a user's hostmask at the time an event was generated.
type Identity struct {
	Nick  string
	Ident string
	Host  string
}

// Prefix returns the identity as a message prefix.
func (id Identity) Prefix() *irc.Prefix {
	return &irc.Prefix{Name: id.Nick, User: id.Ident, Host: id.Host}
}

// Event is one unit of flood traffic.
type Event struct {
	Kind    EventKind
	Source  Identity
	Target  string
	Victim  string
	NewNick string
	Text    string
	Topic   string
	Names   []string
	// Retired lists channels emptied by this event. The observing client is parted from them.
	Retired []string
}

const namesReplyBudget = proto.MaxMessageLength - 100

// Messages renders the event as the lines a server would send to self.
func (e Event) Messages(server string, self Identity) []*irc.Message {
	var msgs []*irc.Message
	src := e.Source.Prefix()

	switch e.Kind {
	case KindJoin:
		msgs = append(msgs, &irc.Message{Prefix: src, Command: irc.JOIN, Params: []string{e.Target}})
	case KindPart:
		msgs = append(msgs, &irc.Message{Prefix: src, Command: irc.PART, Params: []string{e.Target}, Trailing: e.Text})
	case KindQuit:
		msgs = append(msgs, &irc.Message{Prefix: src, Command: irc.QUIT, Trailing: e.Text, EmptyTrailing: true})
	case KindKick:
		msgs = append(msgs, &irc.Message{Prefix: src, Command: irc.KICK, Params: []string{e.Target, e.Victim}, Trailing: e.Text, EmptyTrailing: true})
	case KindPrivmsg:
		msgs = append(msgs, &irc.Message{Prefix: src, Command: irc.PRIVMSG, Params: []string{e.Target}, Trailing: e.Text, EmptyTrailing: true})
	case KindNotice:
		msgs = append(msgs, &irc.Message{Prefix: src, Command: irc.NOTICE, Params: []string{e.Target}, Trailing: e.Text, EmptyTrailing: true})
	case KindNick:
		msgs = append(msgs, &irc.Message{Prefix: src, Command: irc.NICK, Trailing: e.NewNick, EmptyTrailing: true})
	case KindPing:
		msgs = append(msgs, &irc.Message{Command: irc.PING, Trailing: e.Text, EmptyTrailing: true})
	case KindSelfJoin:
		msgs = append(msgs, selfJoin(server, self, e)...)
	}

	for _, name := range e.Retired {
		msgs = append(msgs, &irc.Message{
			Prefix:   self.Prefix(),
			Command:  irc.PART,
			Params:   []string{name},
			Trailing: "channel emptied",
		})
	}
	return msgs
}

func selfJoin(server string, self Identity, e Event) []*irc.Message {
	srv := &irc.Prefix{Name: server}
	msgs := []*irc.Message{{Prefix: self.Prefix(), Command: irc.JOIN, Params: []string{e.Target}}}
	if e.Topic != "" {
		msgs = append(msgs, &irc.Message{
			Prefix:   srv,
			Command:  irc.RPL_TOPIC,
			Params:   []string{self.Nick, e.Target},
			Trailing: e.Topic,
		})
	}

	names := append([]string{"@" + self.Nick}, e.Names...)
	for len(names) > 0 {
		var b strings.Builder
		n := 0
		for n < len(names) && (n == 0 || b.Len()+1+len(names[n]) <= namesReplyBudget) {
			if n > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(names[n])
			n++
		}
		msgs = append(msgs, &irc.Message{
			Prefix:   srv,
			Command:  irc.RPL_NAMREPLY,
			Params:   []string{self.Nick, "=", e.Target},
			Trailing: b.String(),
		})
		names = names[n:]
	}

	msgs = append(msgs, &irc.Message{
		Prefix:   srv,
		Command:  irc.RPL_ENDOFNAMES,
		Params:   []string{self.Nick, e.Target},
		Trailing: "End of /NAMES list.",
	})
	return msgs
}
