package core

import "math/rand/v2"

// helper is satisfied by *testing.T, *testing.B and *rapid.T.
type helper interface{ Helper() }

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func newTestPopulation(t helper, seed uint64, cfg PopulationConfig) *Population {
	t.Helper()
	rng := newRand(seed)
	pop := NewPopulation(cfg, rng, NewStrings(rng, 200))
	pop.SetSelf("tester")
	return pop
}

func newTestGenerator(t helper, seed uint64) *Generator {
	t.Helper()
	rng := newRand(seed)
	str := NewStrings(rng, 400)
	pop := NewPopulation(PopulationConfig{MaxUsers: 50, MaxChannels: 5, MaxNicksPerChannel: 20}, rng, str)
	pop.SetSelf("tester")
	return NewGenerator(GeneratorConfig{
		Weights:        DefaultWeights(),
		UserNotices:    true,
		ChannelNotices: true,
	}, pop, str, rng)
}

var testSelf = Identity{Nick: "tester", Ident: "tester", Host: "localhost"}
