package player

import (
	"sort"
	"sync"

	"github.com/siohaza/weaponsim/internal/catalog"
	"github.com/siohaza/weaponsim/internal/protocol"
	"github.com/siohaza/weaponsim/internal/weapon"
)

type Player struct {
	ID     uint8
	Name   string
	Team   uint8
	Kind   protocol.WeaponType
	Tool   protocol.ItemType
	Kills  uint32
	Local  bool
	Weapon *weapon.State

	mu sync.RWMutex
}

func New(id uint8, name string, local bool) *Player {
	return &Player{
		ID:    id,
		Name:  name,
		Local: local,
		Tool:  protocol.ItemTypeGun,
	}
}

func (p *Player) Lock() {
	p.mu.Lock()
}

func (p *Player) Unlock() {
	p.mu.Unlock()
}

func (p *Player) RLock() {
	p.mu.RLock()
}

func (p *Player) RUnlock() {
	p.mu.RUnlock()
}

func (p *Player) Mode() weapon.Mode {
	if p.Local {
		return weapon.Predicted
	}
	return weapon.Replicated
}

// Equip replaces the held weapon with a fresh, fully loaded instance of
// spec.
func (p *Player) Equip(spec catalog.Spec) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Kind = spec.Kind
	p.Weapon = weapon.New(spec, p.Mode())
}

func (p *Player) SetTool(tool protocol.ItemType) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Tool = tool
}

func (p *Player) SetTeam(team uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Team = team
}

func (p *Player) HoldingGun() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Tool == protocol.ItemTypeGun && p.Weapon != nil
}

func (p *Player) GetName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Name
}

func (p *Player) GetWeapon() *weapon.State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Weapon
}

type Manager struct {
	players map[uint8]*Player
	local   *Player
	mu      sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		players: make(map[uint8]*Player),
	}
}

func (m *Manager) Add(player *Player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[player.ID] = player
	if player.Local {
		m.local = player
	}
}

func (m *Manager) Remove(id uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.local != nil && m.local.ID == id {
		m.local = nil
	}
	delete(m.players, id)
}

func (m *Manager) Get(id uint8) (*Player, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	player, ok := m.players[id]
	return player, ok
}

func (m *Manager) Local() (*Player, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.local, m.local != nil
}

// GetAll returns the players ordered by ID.
func (m *Manager) GetAll() []*Player {
	m.mu.RLock()
	players := make([]*Player, 0, len(m.players))
	for _, player := range m.players {
		players = append(players, player)
	}
	m.mu.RUnlock()

	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}

func (m *Manager) ForEach(fn func(*Player)) {
	for _, player := range m.GetAll() {
		fn(player)
	}
}
