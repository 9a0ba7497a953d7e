package core

import (
	"math/rand/v2"
	"strconv"

	"github.com/vovakirdan/ircflood/internal/proto"
)

// uniqueNickAttempts is how many random nicknames are tried before falling back
// to a numbered one.
const uniqueNickAttempts = 8

// VirtualUser is a simulated participant.
type VirtualUser struct {
	Nick  string
	Ident string
	Host  string

	channels *set[*VirtualChannel]
}

// Identity returns the user's current hostmask.
func (u *VirtualUser) Identity() Identity {
	return Identity{Nick: u.Nick, Ident: u.Ident, Host: u.Host}
}

// ChannelCount returns the number of channels the user is in.
func (u *VirtualUser) ChannelCount() int {
	return u.channels.len()
}

// Channels returns the names of the channels the user is in.
func (u *VirtualUser) Channels() []string {
	names := make([]string, 0, u.channels.len())
	for i := range u.channels.len() {
		names = append(names, u.channels.at(i).Name)
	}
	return names
}

// VirtualChannel is a simulated channel the observing client has been placed in.
type VirtualChannel struct {
	Name  string
	Topic string

	members *set[*VirtualUser]
}

// Size returns the number of synthetic members.
func (c *VirtualChannel) Size() int {
	return c.members.len()
}

// Has reports whether u is a member of c.
func (c *VirtualChannel) Has(u *VirtualUser) bool {
	return c.members.has(proto.Fold(u.Nick))
}

// Nicks returns the nicknames of the synthetic members.
func (c *VirtualChannel) Nicks() []string {
	nicks := make([]string, 0, c.members.len())
	for i := range c.members.len() {
		nicks = append(nicks, c.members.at(i).Nick)
	}
	return nicks
}

// PopulationConfig bounds the simulated population.
type PopulationConfig struct {
	MaxUsers           int
	MaxChannels        int
	MaxNicksPerChannel int
}

// Population tracks the live simulated users and channels of one session.
// Not safe for concurrent use.
type Population struct {
	cfg      PopulationConfig
	rng      *rand.Rand
	names    *Strings
	self     string
	selfKey  string
	users    *set[*VirtualUser]
	channels *set[*VirtualChannel]
	seq      int
}

// NewPopulation returns an empty population drawing names from names.
func NewPopulation(cfg PopulationConfig, rng *rand.Rand, names *Strings) *Population {
	return &Population{
		cfg:      cfg,
		rng:      rng,
		names:    names,
		users:    newSet[*VirtualUser](),
		channels: newSet[*VirtualChannel](),
	}
}

// SetSelf records the observing client's nickname so no synthetic user takes it.
func (p *Population) SetSelf(nick string) {
	p.self = nick
	p.selfKey = proto.Fold(nick)
}

// Self returns the observing client's nickname.
func (p *Population) Self() string {
	return p.self
}

// Size returns the number of live users.
func (p *Population) Size() int {
	return p.users.len()
}

// ChannelCount returns the number of live channels.
func (p *Population) ChannelCount() int {
	return p.channels.len()
}

// Lookup finds a live user by nickname.
func (p *Population) Lookup(nick string) (*VirtualUser, bool) {
	return p.users.get(proto.Fold(nick))
}

// Channel finds a live channel by name.
func (p *Population) Channel(name string) (*VirtualChannel, bool) {
	return p.channels.get(proto.Fold(name))
}

func (p *Population) nickAvailable(nick string) bool {
	key := proto.Fold(nick)
	return key != p.selfKey && !p.users.has(key)
}

// FreshNick returns a nickname not used by the population or the observing client.
func (p *Population) FreshNick() string {
	for range uniqueNickAttempts {
		if nick := p.names.Nick(); p.nickAvailable(nick) {
			return nick
		}
	}
	base := p.names.Nick()
	for {
		p.seq++
		suffix := strconv.Itoa(p.seq)
		nick := base[:min(len(base), proto.MaxNickLength-len(suffix))] + suffix
		if p.nickAvailable(nick) {
			return nick
		}
	}
}

// SpawnUser adds a user with a fresh nickname. It returns false when the
// population is already at its maximum size.
func (p *Population) SpawnUser() (*VirtualUser, bool) {
	if p.users.len() >= p.cfg.MaxUsers {
		return nil, false
	}
	u := &VirtualUser{
		Nick:     p.FreshNick(),
		Ident:    p.names.Ident(),
		Host:     p.names.Host(),
		channels: newSet[*VirtualChannel](),
	}
	p.users.add(proto.Fold(u.Nick), u)
	return u, true
}

// RetireUser removes u from its channels and from the population. Channels left
// without members are retired too; their names are returned.
func (p *Population) RetireUser(u *VirtualUser) []string {
	key := proto.Fold(u.Nick)
	if !p.users.has(key) {
		return nil
	}
	var retired []string
	for u.channels.len() > 0 {
		ch := u.channels.at(u.channels.len() - 1)
		if p.Part(u, ch) {
			retired = append(retired, ch.Name)
		}
	}
	p.users.remove(key)
	return retired
}

// RetireChannel removes the channel called name, e.g. after the client left it.
// Members left in no channel are retired as well. It reports whether the
// channel existed.
func (p *Population) RetireChannel(name string) bool {
	key := proto.Fold(name)
	ch, ok := p.channels.get(key)
	if !ok {
		return false
	}
	for ch.members.len() > 0 {
		u := ch.members.at(ch.members.len() - 1)
		p.Part(u, ch)
		if u.ChannelCount() == 0 {
			p.RetireUser(u)
		}
	}
	p.channels.remove(key)
	return true
}

// SpawnOrPickChannel returns a new channel with probability 1/(n+1), n being the
// number of live channels, or an existing one otherwise. Once MaxChannels is reached
// it always reuses. created reports whether the channel is new.
func (p *Population) SpawnOrPickChannel() (ch *VirtualChannel, created bool) {
	n := p.channels.len()
	if n < p.cfg.MaxChannels && (n == 0 || p.rng.IntN(n+1) == 0) {
		return p.spawnChannel(), true
	}
	if n == 0 {
		return nil, false
	}
	return p.channels.at(p.rng.IntN(n)), false
}

func (p *Population) spawnChannel() *VirtualChannel {
	name := p.names.Channel()
	for p.channels.has(proto.Fold(name)) {
		name = p.names.Channel()
	}
	ch := &VirtualChannel{Name: name, members: newSet[*VirtualUser]()}
	if p.rng.IntN(2) == 0 {
		ch.Topic = p.names.Text(80)
	}
	p.channels.add(proto.Fold(name), ch)
	return ch
}

// PickUser returns a uniformly chosen live user, or false if there is none.
func (p *Population) PickUser() (*VirtualUser, bool) {
	if p.users.len() == 0 {
		return nil, false
	}
	return p.users.at(p.rng.IntN(p.users.len())), true
}

// PickChannel returns a uniformly chosen live channel, or false if there is none.
func (p *Population) PickChannel() (*VirtualChannel, bool) {
	if p.channels.len() == 0 {
		return nil, false
	}
	return p.channels.at(p.rng.IntN(p.channels.len())), true
}

// PickMember returns a uniformly chosen member of ch other than except.
func (p *Population) PickMember(ch *VirtualChannel, except *VirtualUser) (*VirtualUser, bool) {
	n := ch.members.len()
	if except != nil && ch.members.has(proto.Fold(except.Nick)) {
		n--
	}
	if n <= 0 {
		return nil, false
	}
	for {
		u := ch.members.at(p.rng.IntN(ch.members.len()))
		if u != except {
			return u, true
		}
	}
}

// Join adds u to ch. It fails when u is already a member or ch is full.
func (p *Population) Join(u *VirtualUser, ch *VirtualChannel) bool {
	if ch.members.len() >= p.cfg.MaxNicksPerChannel {
		return false
	}
	if !ch.members.add(proto.Fold(u.Nick), u) {
		return false
	}
	u.channels.add(proto.Fold(ch.Name), ch)
	return true
}

// Part removes u from ch. It reports whether ch was retired because it emptied.
func (p *Population) Part(u *VirtualUser, ch *VirtualChannel) bool {
	if !ch.members.remove(proto.Fold(u.Nick)) {
		return false
	}
	key := proto.Fold(ch.Name)
	u.channels.remove(key)
	if ch.members.len() == 0 {
		p.channels.remove(key)
		return true
	}
	return false
}

// Rename changes u's nickname, keeping its channel memberships.
func (p *Population) Rename(u *VirtualUser, nick string) bool {
	old := proto.Fold(u.Nick)
	if !p.users.has(old) || !p.nickAvailable(nick) {
		return false
	}
	key := proto.Fold(nick)
	p.users.remove(old)
	for i := range u.channels.len() {
		members := u.channels.at(i).members
		members.remove(old)
		members.add(key, u)
	}
	u.Nick = nick
	p.users.add(key, u)
	return true
}
