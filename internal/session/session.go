package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/siohaza/weaponsim/internal/callbacks"
	"github.com/siohaza/weaponsim/internal/catalog"
	"github.com/siohaza/weaponsim/internal/player"
	"github.com/siohaza/weaponsim/internal/protocol"
	"github.com/siohaza/weaponsim/internal/validation"
	"github.com/siohaza/weaponsim/internal/weapon"
	"github.com/siohaza/weaponsim/pkg/config"
)

var (
	ErrNoLocalPlayer = errors.New("no local player")
	ErrSwitchLocked  = errors.New("weapon switch locked during reload")
)

type Sender interface {
	SendPacket(data []byte, reliable bool) error
}

// Session drives every weapon instance on the client and reconciles local
// prediction with server messages. All methods must be called from one
// goroutine.
type Session struct {
	config    *config.Config
	catalog   *catalog.Catalog
	players   *player.Manager
	sender    Sender
	callbacks *callbacks.CallbackChain
	logger    *slog.Logger
}

// New creates a session. A nil sender runs the session offline.
func New(cfg *config.Config, cat *catalog.Catalog, sender Sender, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if cat == nil {
		cat = catalog.Default()
	}

	return &Session{
		config:    cfg,
		catalog:   cat,
		players:   player.NewManager(),
		sender:    sender,
		callbacks: callbacks.NewCallbackChain(),
		logger:    logger,
	}
}

func (s *Session) RegisterCallbacks(cb callbacks.Callbacks) {
	s.callbacks.Register(cb)
}

func (s *Session) Players() *player.Manager {
	return s.players
}

func (s *Session) Catalog() *catalog.Catalog {
	return s.catalog
}

func (s *Session) Local() (*player.Player, bool) {
	return s.players.Local()
}

func (s *Session) SetLocalPlayer(id uint8, name string, kind protocol.WeaponType) (*player.Player, error) {
	spec, err := s.catalog.Get(kind)
	if err != nil {
		return nil, fmt.Errorf("failed to equip local player: %w", err)
	}

	if old, ok := s.players.Local(); ok {
		s.players.Remove(old.ID)
	}

	p := player.New(id, name, true)
	p.Equip(spec)
	s.players.Add(p)

	s.logger.Info("local player set", "id", id, "name", name, "weapon", spec.Name)
	return p, nil
}

func (s *Session) AddRemotePlayer(id uint8, name string, team uint8, kind protocol.WeaponType) (*player.Player, error) {
	spec, err := s.catalog.Get(kind)
	if err != nil {
		return nil, fmt.Errorf("failed to equip player %d: %w", id, err)
	}

	p, ok := s.players.Get(id)
	if ok && p.Local {
		return nil, fmt.Errorf("player %d is the local player", id)
	}
	if !ok {
		p = player.New(id, name, false)
		s.players.Add(p)
	}
	p.Lock()
	p.Name = name
	p.Unlock()
	p.SetTeam(team)
	p.Equip(spec)

	s.logger.Debug("remote player registered", "id", id, "name", name, "weapon", spec.Name)
	return p, nil
}

func (s *Session) RemovePlayer(id uint8) {
	if p, ok := s.players.Get(id); ok {
		s.logger.Debug("player removed", "id", id, "name", p.GetName())
	}
	s.players.Remove(id)
}

func (s *Session) localWeapon() (*player.Player, *weapon.State, error) {
	p, ok := s.players.Local()
	if !ok {
		return nil, nil, ErrNoLocalPlayer
	}
	w := p.GetWeapon()
	if w == nil {
		return nil, nil, ErrNoLocalPlayer
	}
	return p, w, nil
}

// SetTrigger records the local trigger state and tells the server when it
// changes.
func (s *Session) SetTrigger(down bool) error {
	p, w, err := s.localWeapon()
	if err != nil {
		return err
	}

	if w.IsShooting() == down {
		return nil
	}
	w.SetShooting(down)

	var input protocol.WeaponInput
	if down {
		input |= protocol.WeaponInputPrimary
	}
	return s.send(&protocol.PacketWeaponInput{
		PacketID:    uint8(protocol.PacketTypeWeaponInput),
		PlayerID:    p.ID,
		WeaponInput: input,
	}, true)
}

func (s *Session) RequestReload() (weapon.ReloadOutcome, error) {
	p, w, err := s.localWeapon()
	if err != nil {
		return weapon.ReloadNoStock, err
	}

	outcome := w.Reload()
	if outcome != weapon.ReloadStarted {
		s.logger.Debug("reload ignored", "player", p.ID, "outcome", outcome.String())
		return outcome, nil
	}

	s.callbacks.OnReloadStart(p)
	return outcome, s.send(&protocol.PacketWeaponReload{
		PacketID:     uint8(protocol.PacketTypeWeaponReload),
		PlayerID:     p.ID,
		MagazineAmmo: uint8(w.Ammo()),
		ReserveAmmo:  uint8(w.Stock()),
	}, true)
}

// ChangeWeapon swaps the local weapon for a fresh instance of kind.
func (s *Session) ChangeWeapon(kind protocol.WeaponType) error {
	p, w, err := s.localWeapon()
	if err != nil {
		return err
	}
	if !w.IsSelectable() {
		return ErrSwitchLocked
	}

	spec, err := s.catalog.Get(kind)
	if err != nil {
		return fmt.Errorf("failed to change weapon: %w", err)
	}
	p.Equip(spec)

	return s.send(&protocol.PacketChangeWeapon{
		PacketID: uint8(protocol.PacketTypeChangeWeapon),
		PlayerID: p.ID,
		WeaponID: kind,
	}, true)
}

// SetTool switches the local held item. Leaving the gun cancels any reload.
func (s *Session) SetTool(tool protocol.ItemType) error {
	p, w, err := s.localWeapon()
	if err != nil {
		return err
	}
	if tool != protocol.ItemTypeGun {
		if !w.IsSelectable() {
			return ErrSwitchLocked
		}
		w.SetShooting(false)
		if w.AbortReload() {
			s.callbacks.OnReloadAbort(p)
		}
	}
	p.SetTool(tool)

	return s.send(&protocol.PacketSetTool{
		PacketID: uint8(protocol.PacketTypeSetTool),
		PlayerID: p.ID,
		Tool:     tool,
	}, true)
}

// Update advances every weapon by dt seconds and dispatches the results.
func (s *Session) Update(dt float64) {
	s.players.ForEach(func(p *player.Player) {
		w := p.GetWeapon()
		if w == nil {
			return
		}

		res, err := w.Tick(dt)
		if err != nil {
			s.logger.Warn("weapon tick skipped", "player", p.ID, "dt", dt, "error", err)
			return
		}
		callbacks.Dispatch(s.callbacks, p, res)
	})
}

// HandleDisconnect resolves a local reload that will never be confirmed.
func (s *Session) HandleDisconnect() {
	p, w, err := s.localWeapon()
	if err != nil || !w.IsReloading() {
		return
	}

	before := w.Ammo()
	w.ForceReloadDone()
	s.logger.Info("reload resolved locally after disconnect", "player", p.ID, "ammo", w.Ammo(), "stock", w.Stock())
	s.callbacks.OnReloadComplete(p, w.Ammo()-before)
}

func (s *Session) HandlePacket(data []byte) error {
	packetType, err := protocol.ReadPacketType(data)
	if err != nil {
		return err
	}

	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "packet received",
		slog.Int("type", int(packetType)),
		slog.Int("size", len(data)))

	switch packetType {
	case protocol.PacketTypeWeaponReload:
		return s.handleWeaponReload(data)
	case protocol.PacketTypeWeaponInput:
		return s.handleWeaponInput(data)
	case protocol.PacketTypeRestock:
		return s.handleRestock(data)
	case protocol.PacketTypeChangeWeapon:
		return s.handleChangeWeapon(data)
	case protocol.PacketTypeCreatePlayer:
		return s.handleCreatePlayer(data)
	case protocol.PacketTypeExistingPlayer:
		return s.handleExistingPlayer(data)
	case protocol.PacketTypePlayerLeft:
		return s.handlePlayerLeft(data)
	case protocol.PacketTypeSetTool:
		return s.handleSetTool(data)
	}

	return nil
}

func (s *Session) weaponOf(id uint8) (*player.Player, *weapon.State, bool) {
	p, ok := s.players.Get(id)
	if !ok {
		s.logger.Debug("packet for unknown player", "id", id)
		return nil, nil, false
	}
	w := p.GetWeapon()
	if w == nil {
		return nil, nil, false
	}
	return p, w, true
}

func (s *Session) handleWeaponReload(data []byte) error {
	var pkt protocol.PacketWeaponReload
	if err := pkt.Read(data); err != nil {
		return fmt.Errorf("failed to read weapon reload packet: %w", err)
	}

	p, w, ok := s.weaponOf(pkt.PlayerID)
	if !ok {
		return nil
	}

	if p.Local {
		ammo, stock := int(pkt.MagazineAmmo), int(pkt.ReserveAmmo)
		if w.Ammo() != ammo || w.Stock() != stock {
			s.logger.Debug("reload prediction corrected", "player", p.ID,
				"predicted_ammo", w.Ammo(), "predicted_stock", w.Stock(),
				"ammo", ammo, "stock", stock)
		}
		w.ReloadDone(ammo, stock)
		s.callbacks.OnReconcile(p, ammo, stock)
		return nil
	}

	if w.Reload() == weapon.ReloadStarted {
		s.callbacks.OnReloadStart(p)
	}
	return nil
}

func (s *Session) handleWeaponInput(data []byte) error {
	var pkt protocol.PacketWeaponInput
	if err := pkt.Read(data); err != nil {
		return fmt.Errorf("failed to read weapon input packet: %w", err)
	}

	p, w, ok := s.weaponOf(pkt.PlayerID)
	if !ok || p.Local {
		return nil
	}

	down := pkt.WeaponInput&protocol.WeaponInputPrimary != 0
	pressed := down && !w.IsShooting()
	w.SetShooting(down)

	if pressed && p.HoldingGun() {
		w.ApplyRemoteFire()
		s.callbacks.OnWeaponFire(p)
	}
	return nil
}

func (s *Session) handleRestock(data []byte) error {
	var pkt protocol.PacketRestock
	if err := pkt.Read(data); err != nil {
		return fmt.Errorf("failed to read restock packet: %w", err)
	}

	p, w, ok := s.weaponOf(pkt.PlayerID)
	if !ok {
		return nil
	}
	w.Restock()
	s.callbacks.OnRestock(p)
	return nil
}

func (s *Session) handleChangeWeapon(data []byte) error {
	var pkt protocol.PacketChangeWeapon
	if err := pkt.Read(data); err != nil {
		return fmt.Errorf("failed to read change weapon packet: %w", err)
	}

	p, ok := s.players.Get(pkt.PlayerID)
	if !ok {
		return nil
	}

	spec, err := s.catalog.Get(pkt.WeaponID)
	if err != nil {
		return fmt.Errorf("failed to change weapon for player %d: %w", pkt.PlayerID, err)
	}
	p.Equip(spec)
	return nil
}

func (s *Session) handleCreatePlayer(data []byte) error {
	var pkt protocol.PacketCreatePlayer
	if err := pkt.Read(data); err != nil {
		return fmt.Errorf("failed to read create player packet: %w", err)
	}
	if !validation.IsValidPlayerID(pkt.PlayerID, protocol.MaxPlayers) {
		return fmt.Errorf("invalid player id %d", pkt.PlayerID)
	}

	name, err := protocol.CP437ToString(pkt.Name[:])
	if err != nil {
		return fmt.Errorf("failed to decode player name: %w", err)
	}

	// a create for the local player is a respawn
	if p, ok := s.players.Get(pkt.PlayerID); ok && p.Local {
		spec, err := s.catalog.Get(pkt.Weapon)
		if err != nil {
			return fmt.Errorf("failed to respawn local player: %w", err)
		}
		p.SetTeam(pkt.Team)
		p.SetTool(protocol.ItemTypeGun)
		p.Equip(spec)
		return nil
	}

	p, err := s.AddRemotePlayer(pkt.PlayerID, name, pkt.Team, pkt.Weapon)
	if err != nil {
		return err
	}
	p.SetTool(protocol.ItemTypeGun)
	return nil
}

func (s *Session) handleExistingPlayer(data []byte) error {
	var pkt protocol.PacketExistingPlayer
	if err := pkt.Read(data); err != nil {
		return fmt.Errorf("failed to read existing player packet: %w", err)
	}
	if !validation.IsValidPlayerID(pkt.PlayerID, protocol.MaxPlayers) {
		return fmt.Errorf("invalid player id %d", pkt.PlayerID)
	}

	name, err := protocol.CP437ToString(pkt.Name[:])
	if err != nil {
		return fmt.Errorf("failed to decode player name: %w", err)
	}

	p, err := s.AddRemotePlayer(pkt.PlayerID, name, pkt.Team, pkt.Weapon)
	if err != nil {
		return err
	}
	p.SetTool(pkt.Item)
	p.Lock()
	p.Kills = pkt.Kills
	p.Unlock()
	return nil
}

func (s *Session) handlePlayerLeft(data []byte) error {
	var pkt protocol.PacketPlayerLeft
	if err := pkt.Read(data); err != nil {
		return fmt.Errorf("failed to read player left packet: %w", err)
	}
	s.RemovePlayer(pkt.PlayerID)
	return nil
}

func (s *Session) handleSetTool(data []byte) error {
	var pkt protocol.PacketSetTool
	if err := pkt.Read(data); err != nil {
		return fmt.Errorf("failed to read set tool packet: %w", err)
	}

	p, ok := s.players.Get(pkt.PlayerID)
	if !ok || p.Local {
		return nil
	}
	p.SetTool(pkt.Tool)

	if w := p.GetWeapon(); w != nil && pkt.Tool != protocol.ItemTypeGun {
		w.SetShooting(false)
		if w.AbortReload() {
			s.callbacks.OnReloadAbort(p)
		}
	}
	return nil
}

func (s *Session) send(packet interface{}, reliable bool) error {
	if s.sender == nil {
		return nil
	}

	data, err := protocol.Marshal(packet)
	if err != nil {
		return err
	}
	if err := s.sender.SendPacket(data, reliable); err != nil {
		return fmt.Errorf("failed to send packet: %w", err)
	}
	return nil
}
