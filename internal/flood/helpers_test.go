package flood

import (
	"io"
	"math/rand/v2"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sorcix/irc"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/ircflood/internal/core"
	"github.com/vovakirdan/ircflood/internal/proto"
)

const testServer = "ircflood.test"

func newGenerator(seed uint64) *core.Generator {
	rng := rand.New(rand.NewPCG(seed, seed))
	str := core.NewStrings(rng, 300)
	pop := core.NewPopulation(core.PopulationConfig{MaxUsers: 40, MaxChannels: 4, MaxNicksPerChannel: 15}, rng, str)
	pop.SetSelf("tester")
	return core.NewGenerator(core.GeneratorConfig{Weights: core.DefaultWeights(), UserNotices: true, ChannelNotices: true}, pop, str, rng)
}

func registeredHandshake(t *testing.T) *core.Handshake {
	t.Helper()
	h := core.NewHandshake(core.HandshakeConfig{ServerName: testServer})
	for _, line := range []string{"NICK tester", "USER tester 0 * :Tester"} {
		_, err := h.Handle(irc.ParseMessage(line))
		require.NoError(t, err)
	}
	require.Equal(t, core.StateFlooding, h.State())
	return h
}

// expected renders the first n events of seed the way the scheduler does.
func expected(seed uint64, n int) []byte {
	g := newGenerator(seed)
	self := core.Identity{Nick: "tester", Ident: "tester", Host: "localhost"}
	var buf []byte
	for range n {
		for _, msg := range g.Next().Messages(testServer, self) {
			buf = proto.AppendLine(buf, msg)
		}
	}
	return buf
}

type rig struct {
	sched   *Scheduler
	server  net.Conn
	client  net.Conn
	inbound chan *irc.Message
}

func newRig(t *testing.T, seed uint64, check, timeout time.Duration) *rig {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	stats := NewStats()
	inbound := make(chan *irc.Message, 8)
	return &rig{
		sched: &Scheduler{
			Generator:  newGenerator(seed),
			Handshake:  registeredHandshake(t),
			Writer:     NewLineWriter(server, check, timeout, stats, nil),
			Stats:      stats,
			Inbound:    inbound,
			ServerName: testServer,
			Batch:      4,
		},
		server:  server,
		client:  client,
		inbound: inbound,
	}
}

// collect reads everything the client side receives until the pipe closes.
func collect(r io.Reader) func() []byte {
	var (
		wg  sync.WaitGroup
		out []byte
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		out, _ = io.ReadAll(r)
	}()
	return func() []byte {
		wg.Wait()
		return out
	}
}

type slowReader struct {
	r     io.Reader
	chunk int
	pause time.Duration
}

func (s *slowReader) Read(p []byte) (int, error) {
	time.Sleep(s.pause)
	return s.r.Read(p[:min(len(p), s.chunk)])
}
