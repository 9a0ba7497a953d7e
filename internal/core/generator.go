package core

import (
	"math/rand/v2"
)

// Decoration odds, in percent.
const (
	highlightChance    = 1
	ctcpActionChance   = 2
	ctcpVersionChance  = 2
	privateQueryChance = 5
)

// Weights sets the relative frequency of each event kind.
type Weights struct {
	Join    int `mapstructure:"join" yaml:"join" json:"join"`
	Part    int `mapstructure:"part" yaml:"part" json:"part"`
	Quit    int `mapstructure:"quit" yaml:"quit" json:"quit"`
	Kick    int `mapstructure:"kick" yaml:"kick" json:"kick"`
	Privmsg int `mapstructure:"privmsg" yaml:"privmsg" json:"privmsg"`
	Notice  int `mapstructure:"notice" yaml:"notice" json:"notice"`
	Nick    int `mapstructure:"nick" yaml:"nick" json:"nick"`
	Ping    int `mapstructure:"ping" yaml:"ping" json:"ping"`
}

// DefaultWeights favours channel traffic with a steady trickle of joins.
func DefaultWeights() Weights {
	return Weights{Join: 20, Part: 1, Quit: 1, Kick: 1, Privmsg: 64, Notice: 8, Nick: 3, Ping: 2}
}

// Total returns the sum of all weights.
func (w Weights) Total() int {
	return w.Join + w.Part + w.Quit + w.Kick + w.Privmsg + w.Notice + w.Nick + w.Ping
}

type weightedKind struct {
	kind   EventKind
	weight int
}

func (w Weights) table() []weightedKind {
	return []weightedKind{
		{KindJoin, w.Join}, {KindPart, w.Part}, {KindQuit, w.Quit}, {KindKick, w.Kick},
		{KindPrivmsg, w.Privmsg}, {KindNotice, w.Notice}, {KindNick, w.Nick}, {KindPing, w.Ping},
	}
}

// GeneratorConfig controls which events a Generator produces.
type GeneratorConfig struct {
	Weights        Weights
	UserNotices    bool
	ChannelNotices bool
}

// Generator produces Command Events against a Population.
// Not safe for concurrent use.
type Generator struct {
	cfg   GeneratorConfig
	pop   *Population
	str   *Strings
	rng   *rand.Rand
	table []weightedKind
	total int
}

// NewGenerator returns a generator. A config whose weights sum to zero uses DefaultWeights.
func NewGenerator(cfg GeneratorConfig, pop *Population, str *Strings, rng *rand.Rand) *Generator {
	if cfg.Weights.Total() <= 0 {
		cfg.Weights = DefaultWeights()
	}
	return &Generator{
		cfg:   cfg,
		pop:   pop,
		str:   str,
		rng:   rng,
		table: cfg.Weights.table(),
		total: cfg.Weights.Total(),
	}
}

// Population returns the population the generator mutates.
func (g *Generator) Population() *Population {
	return g.pop
}

// SetSelf records the client's nickname. A synthetic user already holding it
// is renamed first, and the returned NICK event announces that rename.
func (g *Generator) SetSelf(nick string) (Event, bool) {
	u, ok := g.pop.Lookup(nick)
	if !ok || nick == "" {
		g.pop.SetSelf(nick)
		return Event{}, false
	}
	old := u.Identity()
	fresh := g.pop.FreshNick()
	g.pop.Rename(u, fresh)
	g.pop.SetSelf(nick)
	return Event{Kind: KindNick, Source: old, NewNick: fresh}, true
}

// Next returns the next event and applies it to the population.
func (g *Generator) Next() Event {
	if g.pop.ChannelCount() == 0 {
		return g.join()
	}
	switch g.pickKind() {
	case KindJoin:
		return g.join()
	case KindPart:
		return g.part()
	case KindQuit:
		return g.quit()
	case KindKick:
		return g.kick()
	case KindNotice:
		return g.notice()
	case KindNick:
		return g.nick()
	case KindPing:
		return g.ping()
	default:
		return g.privmsg()
	}
}

func (g *Generator) pickKind() EventKind {
	n := g.rng.IntN(g.total)
	for _, wk := range g.table {
		if n < wk.weight {
			return wk.kind
		}
		n -= wk.weight
	}
	return KindPrivmsg
}

func (g *Generator) chance(pct int) bool {
	return g.rng.IntN(100) < pct
}

func (g *Generator) reason() string {
	if g.chance(50) {
		return ""
	}
	return g.str.Text(60)
}

func (g *Generator) join() Event {
	ch, created := g.pop.SpawnOrPickChannel()
	if ch == nil {
		return g.ping()
	}
	if created {
		return Event{Kind: KindSelfJoin, Target: ch.Name, Topic: ch.Topic, Names: ch.Nicks()}
	}
	if ch.Size() >= g.pop.cfg.MaxNicksPerChannel {
		return g.channelMessage(ch)
	}

	u, ok := g.pop.SpawnUser()
	if !ok {
		// Population is full: bring an existing user over, or make room.
		u, ok = g.pop.PickUser()
		if !ok {
			return g.channelMessage(ch)
		}
		if ch.Has(u) {
			return g.quitUser(u)
		}
	}
	g.pop.Join(u, ch)
	return Event{Kind: KindJoin, Source: u.Identity(), Target: ch.Name}
}

func (g *Generator) part() Event {
	ch, ok := g.pop.PickChannel()
	if !ok {
		return g.join()
	}
	u, ok := g.pop.PickMember(ch, nil)
	if !ok {
		return g.join()
	}
	ev := Event{Kind: KindPart, Source: u.Identity(), Target: ch.Name, Text: g.reason()}
	if g.pop.Part(u, ch) {
		ev.Retired = []string{ch.Name}
	}
	g.dropIfHomeless(u)
	return ev
}

func (g *Generator) quit() Event {
	u, ok := g.pop.PickUser()
	if !ok {
		return g.join()
	}
	return g.quitUser(u)
}

func (g *Generator) quitUser(u *VirtualUser) Event {
	ev := Event{Kind: KindQuit, Source: u.Identity(), Text: g.reason()}
	ev.Retired = g.pop.RetireUser(u)
	return ev
}

func (g *Generator) kick() Event {
	ch, ok := g.pop.PickChannel()
	if !ok {
		return g.join()
	}
	kicker, ok := g.pop.PickMember(ch, nil)
	if !ok {
		return g.join()
	}
	victim, ok := g.pop.PickMember(ch, kicker)
	if !ok {
		return g.join()
	}
	ev := Event{
		Kind:   KindKick,
		Source: kicker.Identity(),
		Target: ch.Name,
		Victim: victim.Nick,
		Text:   g.reason(),
	}
	g.pop.Part(victim, ch)
	g.dropIfHomeless(victim)
	return ev
}

// dropIfHomeless retires a user that is no longer visible to the client.
func (g *Generator) dropIfHomeless(u *VirtualUser) {
	if u.ChannelCount() == 0 {
		g.pop.RetireUser(u)
	}
}

func (g *Generator) privmsg() Event {
	if g.chance(privateQueryChance) {
		if u, ok := g.pop.PickUser(); ok {
			return Event{Kind: KindPrivmsg, Source: u.Identity(), Target: g.pop.Self(), Text: g.decorate(g.str.Body())}
		}
	}
	ch, ok := g.pop.PickChannel()
	if !ok {
		return g.join()
	}
	return g.channelMessage(ch)
}

func (g *Generator) channelMessage(ch *VirtualChannel) Event {
	u, ok := g.pop.PickMember(ch, nil)
	if !ok {
		return g.ping()
	}
	return Event{Kind: KindPrivmsg, Source: u.Identity(), Target: ch.Name, Text: g.decorate(g.str.Body())}
}

// decorate occasionally turns a body into a highlight or a CTCP request.
func (g *Generator) decorate(body string) string {
	switch n := g.rng.IntN(100); {
	case n < highlightChance:
		return g.pop.Self() + ": " + body
	case n < highlightChance+ctcpActionChance:
		return "\x01ACTION " + body + "\x01"
	case n < highlightChance+ctcpActionChance+ctcpVersionChance:
		return "\x01VERSION\x01"
	default:
		return body
	}
}

func (g *Generator) notice() Event {
	user, channel := g.cfg.UserNotices, g.cfg.ChannelNotices
	if user && channel {
		user = g.chance(50)
		channel = !user
	}
	switch {
	case user:
		u, ok := g.pop.PickUser()
		if !ok {
			return g.join()
		}
		return Event{Kind: KindNotice, Source: u.Identity(), Target: g.pop.Self(), Text: g.str.Body()}
	case channel:
		ch, ok := g.pop.PickChannel()
		if !ok {
			return g.join()
		}
		u, ok := g.pop.PickMember(ch, nil)
		if !ok {
			return g.join()
		}
		return Event{Kind: KindNotice, Source: u.Identity(), Target: ch.Name, Text: g.str.Body()}
	default:
		return g.privmsg()
	}
}

func (g *Generator) nick() Event {
	u, ok := g.pop.PickUser()
	if !ok {
		return g.join()
	}
	old := u.Identity()
	nick := g.pop.FreshNick()
	g.pop.Rename(u, nick)
	return Event{Kind: KindNick, Source: old, NewNick: nick}
}

func (g *Generator) ping() Event {
	return Event{Kind: KindPing, Text: g.str.Token()}
}
