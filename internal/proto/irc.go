package proto

import (
	"strings"
	"unicode/utf8"

	"github.com/sorcix/irc"
)

const (
	// MaxMessageLength is the longest message RFC 2812 allows, CRLF excluded.
	MaxMessageLength = 510
	// MaxNickLength matches the NICKLEN advertised by most modern networks.
	MaxNickLength = 30
	// MaxChannelLength is the RFC 2812 channel name limit.
	MaxChannelLength = 50
	// MaxIdentLength is the conventional USERLEN.
	MaxIdentLength = 10

	CAP     = "CAP"
	CapLS   = "LS"
	CapList = "LIST"
	CapReq  = "REQ"
	CapNak  = "NAK"
	CapEnd  = "END"

	// CTCPDelim wraps client-to-client protocol payloads inside PRIVMSG.
	CTCPDelim = "\x01"
)

const nickSpecials = "[]\\`_^{|}"

var framing = strings.NewReplacer("\r", "␍", "\n", "␊", "\x00", "␀")

func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isDigit(c byte) bool  { return c >= '0' && c <= '9' }

// IsValidNick reports whether nick is a legal RFC 2812 nickname of at most MaxNickLength bytes.
func IsValidNick(nick string) bool {
	if nick == "" || len(nick) > MaxNickLength {
		return false
	}
	if c := nick[0]; !isLetter(c) && strings.IndexByte(nickSpecials, c) < 0 {
		return false
	}
	for i := 1; i < len(nick); i++ {
		c := nick[i]
		if isLetter(c) || isDigit(c) || c == '-' || strings.IndexByte(nickSpecials, c) >= 0 {
			continue
		}
		return false
	}
	return true
}

// IsValidChannel reports whether name is a legal channel name. Non-ASCII UTF-8 is allowed.
func IsValidChannel(name string) bool {
	if len(name) < 2 || len(name) > MaxChannelLength {
		return false
	}
	switch name[0] {
	case '#', '&', '+', '!':
	default:
		return false
	}
	if !utf8.ValidString(name) {
		return false
	}
	for i := 1; i < len(name); i++ {
		switch name[i] {
		case ' ', ',', '\a', 0, '\r', '\n', ':':
			return false
		}
	}
	return true
}

// IsValidIdent reports whether ident can be used as the user part of a hostmask.
func IsValidIdent(ident string) bool {
	if ident == "" || len(ident) > MaxIdentLength {
		return false
	}
	return !strings.ContainsAny(ident, " @!:\r\n\x00")
}

// Fold returns the RFC 1459 case-insensitive key of a nickname or channel name.
func Fold(s string) string {
	b := []byte(s)
	for i, c := range b {
		switch {
		case c >= 'A' && c <= 'Z':
			b[i] = c + ('a' - 'A')
		case c == '[':
			b[i] = '{'
		case c == ']':
			b[i] = '}'
		case c == '\\':
			b[i] = '|'
		case c == '~':
			b[i] = '^'
		}
	}
	return string(b)
}

// Sanitize replaces bytes that would end an IRC line with their visible control pictures.
func Sanitize(s string) string {
	if !strings.ContainsAny(s, "\r\n\x00") {
		return s
	}
	return framing.Replace(s)
}

// Arg returns the i-th argument of msg, treating the trailing parameter as the last one.
func Arg(msg *irc.Message, i int) string {
	if i < len(msg.Params) {
		return msg.Params[i]
	}
	if i == len(msg.Params) {
		return msg.Trailing
	}
	return ""
}

// Len returns the encoded length of msg without CRLF.
func Len(msg *irc.Message) int {
	n := len(msg.Command)
	if p := msg.Prefix; p != nil {
		n += 2 + len(p.Name)
		if p.User != "" {
			n += 1 + len(p.User)
		}
		if p.Host != "" {
			n += 1 + len(p.Host)
		}
	}
	for _, param := range msg.Params {
		n += 1 + len(param)
	}
	if msg.Trailing != "" || msg.EmptyTrailing {
		n += 2 + len(msg.Trailing)
	}
	return n
}

// Fit sanitizes msg and clips its trailing parameter on a rune boundary so the
// encoded message is at most MaxMessageLength bytes.
func Fit(msg *irc.Message) {
	for i, param := range msg.Params {
		msg.Params[i] = Sanitize(param)
	}
	if msg.Trailing != "" {
		msg.Trailing = Sanitize(msg.Trailing)
		msg.EmptyTrailing = true
	}

	over := Len(msg) - MaxMessageLength
	if over <= 0 {
		return
	}
	keep := max(len(msg.Trailing)-over, 0)
	for keep > 0 && !utf8.RuneStart(msg.Trailing[keep]) {
		keep--
	}
	msg.Trailing = msg.Trailing[:keep]
}

// AppendLine fits msg and appends its wire form, CRLF included, to buf.
func AppendLine(buf []byte, msg *irc.Message) []byte {
	Fit(msg)
	buf = append(buf, msg.Bytes()...)
	return append(buf, '\r', '\n')
}
