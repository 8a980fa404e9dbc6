package host

import (
	"sync"

	"github.com/google/uuid"
)

// Notice kinds delivered to a virtual player's client
const (
	NoticeMessage = "message"
	NoticeTitle   = "title"
	NoticeSound   = "sound"
	NoticeLevel   = "level"
	NoticeMove    = "teleport"
)

// Notice is something the server shows a virtual player
type Notice struct {
	Kind     string    `json:"kind"`
	Text     string    `json:"text,omitempty"`
	Title    *Title    `json:"title,omitempty"`
	Level    int       `json:"level,omitempty"`
	Location *Location `json:"location,omitempty"`
}

// VirtualPlayer is an in-memory Player used by the websocket bridge and tests
type VirtualPlayer struct {
	id   uuid.UUID
	name string

	mu          sync.Mutex
	online      bool
	permissions map[string]bool
	location    Location
	velocity    [3]float64
	gameMode    GameMode
	allowFlight bool
	level       int
	fallReset   int
	effects     []PotionEffect
	inventory   *Inventory
	notices     []Notice
	notify      func(Notice)
}

// NewVirtualPlayer creates an online player in survival mode
func NewVirtualPlayer(id uuid.UUID, name string) *VirtualPlayer {
	return &VirtualPlayer{
		id:          id,
		name:        name,
		online:      true,
		permissions: make(map[string]bool),
		gameMode:    Survival,
		inventory:   NewInventory(),
	}
}

// OnNotice registers a callback invoked for every notice
func (p *VirtualPlayer) OnNotice(fn func(Notice)) {
	p.mu.Lock()
	p.notify = fn
	p.mu.Unlock()
}

func (p *VirtualPlayer) push(n Notice) {
	p.mu.Lock()
	p.notices = append(p.notices, n)
	fn := p.notify
	p.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

// Notices returns every notice received so far
func (p *VirtualPlayer) Notices() []Notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Notice, len(p.notices))
	copy(out, p.notices)
	return out
}

// Messages returns the text of every chat message received so far
func (p *VirtualPlayer) Messages() []string {
	var msgs []string
	for _, n := range p.Notices() {
		if n.Kind == NoticeMessage {
			msgs = append(msgs, n.Text)
		}
	}
	return msgs
}

// SetOnline marks the player connected or disconnected
func (p *VirtualPlayer) SetOnline(online bool) {
	p.mu.Lock()
	p.online = online
	p.mu.Unlock()
}

// Grant gives the player a permission node
func (p *VirtualPlayer) Grant(node string) {
	p.mu.Lock()
	p.permissions[node] = true
	p.mu.Unlock()
}

// MoveTo sets the player's position without a teleport notice, as client movement does
func (p *VirtualPlayer) MoveTo(loc Location) {
	p.mu.Lock()
	p.location = loc
	p.mu.Unlock()
}

// Velocity returns the last push applied to the player
func (p *VirtualPlayer) Velocity() (dx, dy, dz float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.velocity[0], p.velocity[1], p.velocity[2]
}

func (p *VirtualPlayer) ID() uuid.UUID { return p.id }
func (p *VirtualPlayer) Name() string  { return p.name }

func (p *VirtualPlayer) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

func (p *VirtualPlayer) HasPermission(node string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.permissions[node] || p.permissions["*"]
}

func (p *VirtualPlayer) Location() Location {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location
}

func (p *VirtualPlayer) Teleport(loc Location) {
	p.mu.Lock()
	p.location = loc
	p.mu.Unlock()
	p.push(Notice{Kind: NoticeMove, Location: &loc})
}

func (p *VirtualPlayer) Push(dx, dy, dz float64) {
	p.mu.Lock()
	p.velocity = [3]float64{dx, dy, dz}
	p.location.X += dx
	p.location.Y += dy
	p.location.Z += dz
	p.mu.Unlock()
}

func (p *VirtualPlayer) ResetFallDistance() {
	p.mu.Lock()
	p.fallReset++
	p.mu.Unlock()
}

func (p *VirtualPlayer) GameMode() GameMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gameMode
}

func (p *VirtualPlayer) SetGameMode(m GameMode) {
	p.mu.Lock()
	p.gameMode = m
	p.mu.Unlock()
}

func (p *VirtualPlayer) AllowFlight() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allowFlight
}

func (p *VirtualPlayer) SetAllowFlight(allow bool) {
	p.mu.Lock()
	p.allowFlight = allow
	p.mu.Unlock()
}

func (p *VirtualPlayer) Level() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *VirtualPlayer) SetLevel(level int) {
	p.mu.Lock()
	changed := p.level != level
	p.level = level
	p.mu.Unlock()
	if changed {
		p.push(Notice{Kind: NoticeLevel, Level: level})
	}
}

func (p *VirtualPlayer) Inventory() *Inventory { return p.inventory }

func (p *VirtualPlayer) PotionEffects() []PotionEffect {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PotionEffect, len(p.effects))
	copy(out, p.effects)
	return out
}

func (p *VirtualPlayer) AddPotionEffect(e PotionEffect) {
	p.mu.Lock()
	p.effects = append(p.effects, e)
	p.mu.Unlock()
}

func (p *VirtualPlayer) ClearPotionEffects() {
	p.mu.Lock()
	p.effects = nil
	p.mu.Unlock()
}

func (p *VirtualPlayer) SendMessage(msg string) {
	p.push(Notice{Kind: NoticeMessage, Text: msg})
}

func (p *VirtualPlayer) DisplayTitle(t Title) {
	p.push(Notice{Kind: NoticeTitle, Title: &t})
}

func (p *VirtualPlayer) PlaySound(sound string) {
	p.push(Notice{Kind: NoticeSound, Text: sound})
}
