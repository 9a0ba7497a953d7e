package core

import (
	"math/rand/v2"
	"strings"

	"github.com/vovakirdan/ircflood/internal/proto"
)

const (
	alnum        = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	lowerAlnum   = "abcdefghijklmnopqrstuvwxyz0123456789"
	nickFirst    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz[]\\`_^{|}"
	nickRest     = nickFirst + "0123456789-"
	channelChars = alnum + "-_.[]^`"
	bodyChars    = alnum + "     "
)

// Edge case odds, in percent.
const (
	emptyBodyChance   = 2
	maxBodyChance     = 3
	adversarialChance = 5
	longTokenChance   = 5
)

// adversarial fragments: formatting codes, CTCP markers, bidi controls,
// multi-byte runes and raw framing bytes that the encoder must neutralise.
var adversarial = []string{
	"\x02", "\x034,12", "\x1d", "\x1f", "\x16", "\x0f", "\x01",
	"é", "日本語", "🙂", "\u202e", "\u200b", "\t", ":", "%s%n", " :",
	"\r", "\n", "\r\n", "\x00",
}

var tlds = []string{"net", "org", "example", "irc", "test"}

// Strings draws random protocol tokens and message bodies.
type Strings struct {
	rng     *rand.Rand
	maxBody int
}

// NewStrings returns a token source reading from rng. Bodies are at most maxBody bytes
// before adversarial fragments are expanded.
func NewStrings(rng *rand.Rand, maxBody int) *Strings {
	return &Strings{rng: rng, maxBody: max(maxBody, 0)}
}

func (s *Strings) chance(pct int) bool {
	return s.rng.IntN(100) < pct
}

func (s *Strings) pick(set string, n int) string {
	var b strings.Builder
	b.Grow(n)
	for range n {
		b.WriteByte(set[s.rng.IntN(len(set))])
	}
	return b.String()
}

// Nick returns a legal nickname, occasionally of maximum length.
func (s *Strings) Nick() string {
	n := 3 + s.rng.IntN(10)
	if s.chance(longTokenChance) {
		n = proto.MaxNickLength
	}
	return s.pick(nickFirst, 1) + s.pick(nickRest, n-1)
}

// Ident returns a user name for a hostmask.
func (s *Strings) Ident() string {
	return s.pick(alnum, 1+s.rng.IntN(proto.MaxIdentLength))
}

// Host returns a hostname-like string.
func (s *Strings) Host() string {
	return s.pick(lowerAlnum, 3+s.rng.IntN(8)) + "." +
		s.pick(lowerAlnum, 2+s.rng.IntN(8)) + "." +
		tlds[s.rng.IntN(len(tlds))]
}

// Channel returns a legal channel name. Long names carry a non-ASCII rune and fill
// the length limit exactly.
func (s *Strings) Channel() string {
	if s.chance(longTokenChance) {
		const unusual = "é"
		return "#" + unusual + s.pick(channelChars, proto.MaxChannelLength-1-len(unusual))
	}
	return "#" + s.pick(channelChars, 1+s.rng.IntN(25))
}

// Text returns plain alphanumeric text with spaces, 1..maxLen bytes long.
func (s *Strings) Text(maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	return s.pick(bodyChars, 1+s.rng.IntN(maxLen))
}

// Token returns an opaque alphanumeric token, used for PING payloads.
func (s *Strings) Token() string {
	return s.pick(alnum, 8+s.rng.IntN(8))
}

// Body returns a message body. Most bodies are plain text of random length; a few
// are empty, exactly maxBody long, or stuffed with adversarial fragments.
func (s *Strings) Body() string {
	if s.maxBody == 0 || s.chance(emptyBodyChance) {
		return ""
	}
	n := 1 + s.rng.IntN(s.maxBody)
	if s.chance(maxBodyChance) {
		n = s.maxBody
	}
	if s.chance(adversarialChance) {
		return s.adversarialBody(n)
	}
	return s.pick(bodyChars, n)
}

func (s *Strings) adversarialBody(n int) string {
	var b strings.Builder
	b.Grow(n + 8)
	for b.Len() < n {
		if s.chance(30) {
			b.WriteString(adversarial[s.rng.IntN(len(adversarial))])
			continue
		}
		b.WriteByte(bodyChars[s.rng.IntN(len(bodyChars))])
	}
	return b.String()
}
