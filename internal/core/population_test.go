package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/vovakirdan/ircflood/internal/proto"
)

func TestSpawnUserRespectsMaximum(t *testing.T) {
	pop := newTestPopulation(t, 1, PopulationConfig{MaxUsers: 10, MaxChannels: 3, MaxNicksPerChannel: 10})

	spawned := 0
	for range 1000 {
		if _, ok := pop.SpawnUser(); ok {
			spawned++
		}
		require.LessOrEqual(t, pop.Size(), 10)
	}
	assert.Equal(t, 10, spawned)
	assert.Equal(t, 10, pop.Size())
}

func TestSpawnUserAvoidsSelfAndDuplicates(t *testing.T) {
	pop := newTestPopulation(t, 2, PopulationConfig{MaxUsers: 500, MaxChannels: 1, MaxNicksPerChannel: 1})

	seen := map[string]bool{}
	for range 500 {
		u, ok := pop.SpawnUser()
		require.True(t, ok)
		key := proto.Fold(u.Nick)
		require.False(t, seen[key], "duplicate nick %q", u.Nick)
		require.NotEqual(t, proto.Fold("tester"), key)
		require.True(t, proto.IsValidNick(u.Nick), "illegal nick %q", u.Nick)
		seen[key] = true
	}
}

func TestJoinPartRetiresEmptyChannel(t *testing.T) {
	pop := newTestPopulation(t, 3, PopulationConfig{MaxUsers: 10, MaxChannels: 2, MaxNicksPerChannel: 2})

	ch, created := pop.SpawnOrPickChannel()
	require.True(t, created)
	alice, _ := pop.SpawnUser()
	bob, _ := pop.SpawnUser()
	carol, _ := pop.SpawnUser()

	require.True(t, pop.Join(alice, ch))
	require.False(t, pop.Join(alice, ch), "double join")
	require.True(t, pop.Join(bob, ch))
	require.False(t, pop.Join(carol, ch), "channel full")
	assert.Equal(t, 2, ch.Size())

	assert.False(t, pop.Part(alice, ch))
	assert.Equal(t, 1, pop.ChannelCount())
	assert.True(t, pop.Part(bob, ch))
	assert.Equal(t, 0, pop.ChannelCount())
	assert.False(t, pop.Part(bob, ch), "part of non-member")
}

func TestRetireUserReturnsEmptiedChannels(t *testing.T) {
	pop := newTestPopulation(t, 4, PopulationConfig{MaxUsers: 10, MaxChannels: 3, MaxNicksPerChannel: 10})

	a, _ := pop.SpawnOrPickChannel()
	for pop.ChannelCount() < 2 {
		pop.SpawnOrPickChannel()
	}
	b, _ := pop.PickChannel()
	for b == a {
		b, _ = pop.PickChannel()
	}

	alice, _ := pop.SpawnUser()
	bob, _ := pop.SpawnUser()
	pop.Join(alice, a)
	pop.Join(alice, b)
	pop.Join(bob, b)

	retired := pop.RetireUser(alice)
	assert.Equal(t, []string{a.Name}, retired)
	assert.Equal(t, 1, pop.Size())
	assert.Equal(t, 1, pop.ChannelCount())
	assert.Equal(t, []string{bob.Nick}, b.Nicks())

	_, ok := pop.Lookup(alice.Nick)
	assert.False(t, ok)
	assert.Nil(t, pop.RetireUser(alice))
}

func TestChannelCountRespectsMaximum(t *testing.T) {
	pop := newTestPopulation(t, 5, PopulationConfig{MaxUsers: 10, MaxChannels: 4, MaxNicksPerChannel: 10})
	for range 1000 {
		ch, _ := pop.SpawnOrPickChannel()
		require.NotNil(t, ch)
		require.LessOrEqual(t, pop.ChannelCount(), 4)
	}
	assert.Equal(t, 4, pop.ChannelCount())
}

func TestRenameKeepsMembership(t *testing.T) {
	pop := newTestPopulation(t, 6, PopulationConfig{MaxUsers: 10, MaxChannels: 1, MaxNicksPerChannel: 10})
	ch, _ := pop.SpawnOrPickChannel()
	u, _ := pop.SpawnUser()
	pop.Join(u, ch)

	require.False(t, pop.Rename(u, "TESTER"), "self nick is taken")
	require.True(t, pop.Rename(u, "renamed"))

	got, ok := pop.Lookup("RENAMED")
	require.True(t, ok)
	assert.Same(t, u, got)
	assert.True(t, ch.Has(u))
	assert.Equal(t, []string{"renamed"}, ch.Nicks())
}

func TestPickMemberExcludes(t *testing.T) {
	pop := newTestPopulation(t, 7, PopulationConfig{MaxUsers: 10, MaxChannels: 1, MaxNicksPerChannel: 10})
	ch, _ := pop.SpawnOrPickChannel()

	_, ok := pop.PickMember(ch, nil)
	assert.False(t, ok)

	alice, _ := pop.SpawnUser()
	pop.Join(alice, ch)
	_, ok = pop.PickMember(ch, alice)
	assert.False(t, ok)

	bob, _ := pop.SpawnUser()
	pop.Join(bob, ch)
	for range 20 {
		got, ok := pop.PickMember(ch, alice)
		require.True(t, ok)
		require.Same(t, bob, got)
	}
}

func TestPopulationBoundsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := PopulationConfig{
			MaxUsers:           rapid.IntRange(1, 30).Draw(t, "maxUsers"),
			MaxChannels:        rapid.IntRange(1, 6).Draw(t, "maxChannels"),
			MaxNicksPerChannel: rapid.IntRange(1, 10).Draw(t, "maxNicks"),
		}
		pop := newTestPopulation(t, rapid.Uint64().Draw(t, "seed"), cfg)

		ops := rapid.SliceOfN(rapid.IntRange(0, 4), 1, 300).Draw(t, "ops")
		for _, op := range ops {
			switch op {
			case 0:
				pop.SpawnUser()
			case 1:
				pop.SpawnOrPickChannel()
			case 2:
				u, ok := pop.PickUser()
				ch, ok2 := pop.PickChannel()
				if ok && ok2 {
					pop.Join(u, ch)
				}
			case 3:
				if u, ok := pop.PickUser(); ok {
					pop.RetireUser(u)
				}
			case 4:
				if ch, ok := pop.PickChannel(); ok {
					if u, ok := pop.PickMember(ch, nil); ok {
						pop.Part(u, ch)
					}
				}
			}
			if pop.Size() > cfg.MaxUsers {
				t.Fatalf("population %d exceeds %d", pop.Size(), cfg.MaxUsers)
			}
			if pop.ChannelCount() > cfg.MaxChannels {
				t.Fatalf("channels %d exceed %d", pop.ChannelCount(), cfg.MaxChannels)
			}
			for i := range pop.channels.len() {
				if n := pop.channels.at(i).Size(); n > cfg.MaxNicksPerChannel {
					t.Fatalf("channel has %d members, max %d", n, cfg.MaxNicksPerChannel)
				}
			}
		}
	})
}

func TestRetireChannelDropsHomelessMembers(t *testing.T) {
	pop := newTestPopulation(t, 4, PopulationConfig{MaxUsers: 10, MaxChannels: 5, MaxNicksPerChannel: 10})

	var left, kept *VirtualChannel
	for left == nil || kept == nil {
		ch, created := pop.SpawnOrPickChannel()
		if !created {
			continue
		}
		if left == nil {
			left = ch
		} else {
			kept = ch
		}
	}
	alice, _ := pop.SpawnUser()
	bob, _ := pop.SpawnUser()
	require.True(t, pop.Join(alice, left))
	require.True(t, pop.Join(bob, left))
	require.True(t, pop.Join(bob, kept))

	require.True(t, pop.RetireChannel(left.Name))

	_, ok := pop.Channel(left.Name)
	assert.False(t, ok)
	_, ok = pop.Lookup(alice.Nick)
	assert.False(t, ok, "user only in the retired channel stays live")
	_, ok = pop.Lookup(bob.Nick)
	assert.True(t, ok)
	assert.Equal(t, []string{kept.Name}, bob.Channels())
	assert.Equal(t, 1, kept.Size())

	assert.False(t, pop.RetireChannel(left.Name), "second retire")
	assert.False(t, pop.RetireChannel("#nowhere"))
}

func TestRetireChannelWithoutMembers(t *testing.T) {
	pop := newTestPopulation(t, 5, PopulationConfig{MaxUsers: 10, MaxChannels: 1, MaxNicksPerChannel: 10})
	ch, created := pop.SpawnOrPickChannel()
	require.True(t, created)

	assert.True(t, pop.RetireChannel(ch.Name))
	assert.Equal(t, 0, pop.ChannelCount())
}
