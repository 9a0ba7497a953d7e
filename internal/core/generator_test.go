package core

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/vovakirdan/ircflood/internal/proto"
)

func render(g *Generator, events int) []byte {
	var buf []byte
	for range events {
		for _, msg := range g.Next().Messages("ircflood", testSelf) {
			buf = proto.AppendLine(buf, msg)
		}
	}
	return buf
}

func TestGeneratorIsDeterministic(t *testing.T) {
	a := render(newTestGenerator(t, 42), 2000)
	b := render(newTestGenerator(t, 42), 2000)
	require.True(t, bytes.Equal(a, b), "same seed produced different output")

	c := render(newTestGenerator(t, 43), 2000)
	require.False(t, bytes.Equal(a, c), "different seeds produced identical output")
}

func TestGeneratorFirstEventIsSelfJoin(t *testing.T) {
	g := newTestGenerator(t, 1)
	ev := g.Next()
	require.Equal(t, KindSelfJoin, ev.Kind)
	require.True(t, proto.IsValidChannel(ev.Target))
}

func TestGeneratorProducesEveryKind(t *testing.T) {
	g := newTestGenerator(t, 9)
	seen := map[EventKind]int{}
	for range 20000 {
		seen[g.Next().Kind]++
	}
	for _, kind := range Kinds {
		assert.Positive(t, seen[kind], "kind %s never generated", kind)
	}
	assert.Greater(t, seen[KindPrivmsg], seen[KindJoin])
}

func TestGeneratorNoticesDisabled(t *testing.T) {
	g := newTestGenerator(t, 5)
	g.cfg.UserNotices = false
	g.cfg.ChannelNotices = false
	for range 5000 {
		require.NotEqual(t, KindNotice, g.Next().Kind)
	}
}

func TestGeneratorZeroWeightsFallBack(t *testing.T) {
	rng := newRand(1)
	str := NewStrings(rng, 10)
	pop := NewPopulation(PopulationConfig{MaxUsers: 5, MaxChannels: 1, MaxNicksPerChannel: 5}, rng, str)
	g := NewGenerator(GeneratorConfig{}, pop, str, rng)
	assert.Equal(t, DefaultWeights(), g.cfg.Weights)
}

// Every channel event must refer to a channel the client was placed in and not yet parted from.
func TestGeneratorChannelEventsTargetJoinedChannels(t *testing.T) {
	g := newTestGenerator(t, 77)
	joined := map[string]bool{}
	for i := range 20000 {
		ev := g.Next()
		switch ev.Kind {
		case KindSelfJoin:
			require.False(t, joined[proto.Fold(ev.Target)], "event %d: self-join twice", i)
			joined[proto.Fold(ev.Target)] = true
		case KindJoin, KindPart, KindKick:
			require.True(t, joined[proto.Fold(ev.Target)], "event %d: %s to unknown channel %q", i, ev.Kind, ev.Target)
		case KindPrivmsg, KindNotice:
			if ev.Target != "tester" {
				require.True(t, joined[proto.Fold(ev.Target)], "event %d: %s to unknown channel %q", i, ev.Kind, ev.Target)
			}
		}
		for _, name := range ev.Retired {
			delete(joined, proto.Fold(name))
		}
		require.Equal(t, len(joined), g.pop.ChannelCount(), "event %d", i)
	}
}

func TestGeneratorLongRunStaysBounded(t *testing.T) {
	g := newTestGenerator(t, 2024)
	cfg := g.pop.cfg
	for range 50000 {
		g.Next()
		require.LessOrEqual(t, g.pop.Size(), cfg.MaxUsers)
		require.LessOrEqual(t, g.pop.ChannelCount(), cfg.MaxChannels)
	}
}

func TestGeneratedLinesKeepFraming(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := newTestGenerator(t, rapid.Uint64().Draw(t, "seed"))
		g.str.maxBody = rapid.IntRange(0, 2000).Draw(t, "maxBody")
		for range 300 {
			for _, msg := range g.Next().Messages("ircflood", testSelf) {
				line := proto.AppendLine(nil, msg)
				if len(line) > proto.MaxMessageLength+2 {
					t.Fatalf("line of %d bytes: %q", len(line), line)
				}
				body := line[:len(line)-2]
				if !bytes.HasSuffix(line, []byte("\r\n")) || bytes.ContainsAny(body, "\r\n\x00") {
					t.Fatalf("broken framing: %q", line)
				}
			}
		}
	})
}

func BenchmarkGeneratorNext(b *testing.B) {
	g := newTestGenerator(b, 1)
	var buf []byte
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf = buf[:0]
		for _, msg := range g.Next().Messages("ircflood", testSelf) {
			buf = proto.AppendLine(buf, msg)
		}
	}
}

func TestGeneratorKindSharesFollowWeights(t *testing.T) {
	const events = 100_000
	rng := newRand(2024)
	str := NewStrings(rng, 40)
	// Limits high enough that full channels or an empty population never force a fallback.
	pop := NewPopulation(PopulationConfig{MaxUsers: events, MaxChannels: 5, MaxNicksPerChannel: events}, rng, str)
	pop.SetSelf("tester")
	weights := DefaultWeights()
	g := NewGenerator(GeneratorConfig{Weights: weights, UserNotices: true, ChannelNotices: true}, pop, str, rng)

	seen := map[EventKind]int{}
	for range events {
		kind := g.Next().Kind
		if kind == KindSelfJoin {
			kind = KindJoin
		}
		seen[kind]++
	}

	total := float64(weights.Total())
	for _, wk := range weights.table() {
		want := float64(wk.weight) / total
		got := float64(seen[wk.kind]) / events
		assert.InDelta(t, want, got, 0.015, "share of %s", wk.kind)
	}
}

func TestGeneratorSetSelfRenamesCollidingUser(t *testing.T) {
	g := newTestGenerator(t, 31)
	for g.pop.Size() == 0 {
		g.Next()
	}
	u, ok := g.pop.PickUser()
	require.True(t, ok)
	taken := u.Identity()
	channels := u.Channels()

	ev, renamed := g.SetSelf(taken.Nick)
	require.True(t, renamed)
	assert.Equal(t, KindNick, ev.Kind)
	assert.Equal(t, taken, ev.Source)
	assert.NotEqual(t, proto.Fold(taken.Nick), proto.Fold(ev.NewNick))

	_, ok = g.pop.Lookup(taken.Nick)
	assert.False(t, ok, "client nick still held by a synthetic user")
	moved, ok := g.pop.Lookup(ev.NewNick)
	require.True(t, ok)
	assert.Same(t, u, moved)
	assert.Equal(t, channels, moved.Channels())
	assert.Equal(t, taken.Nick, g.pop.Self())

	for range 5000 {
		require.NotEqual(t, proto.Fold(taken.Nick), proto.Fold(g.Next().Source.Nick))
	}
}

func TestGeneratorSetSelfWithoutCollision(t *testing.T) {
	g := newTestGenerator(t, 32)
	_, renamed := g.SetSelf("unusedNick")
	assert.False(t, renamed)
	assert.Equal(t, "unusedNick", g.pop.Self())
}
