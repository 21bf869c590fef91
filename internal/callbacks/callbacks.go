package callbacks

import (
	"log/slog"

	"github.com/siohaza/weaponsim/internal/player"
	"github.com/siohaza/weaponsim/internal/weapon"
)

type Callbacks interface {
	OnWeaponFire(p *player.Player)
	OnDryFire(p *player.Player)
	OnBrassEject(p *player.Player)
	OnReloadStart(p *player.Player)
	OnReloadComplete(p *player.Player, rounds int)
	OnReloadAbort(p *player.Player)
	OnReconcile(p *player.Player, ammo, stock int)
	OnRestock(p *player.Player)
}

type DefaultCallbacks struct{}

func (d *DefaultCallbacks) OnWeaponFire(p *player.Player)                 {}
func (d *DefaultCallbacks) OnDryFire(p *player.Player)                    {}
func (d *DefaultCallbacks) OnBrassEject(p *player.Player)                 {}
func (d *DefaultCallbacks) OnReloadStart(p *player.Player)                {}
func (d *DefaultCallbacks) OnReloadComplete(p *player.Player, rounds int) {}
func (d *DefaultCallbacks) OnReloadAbort(p *player.Player)                {}
func (d *DefaultCallbacks) OnReconcile(p *player.Player, ammo, stock int) {}
func (d *DefaultCallbacks) OnRestock(p *player.Player)                    {}

type CallbackChain struct {
	callbacks []Callbacks
}

func NewCallbackChain() *CallbackChain {
	return &CallbackChain{
		callbacks: make([]Callbacks, 0),
	}
}

func (c *CallbackChain) Register(cb Callbacks) {
	c.callbacks = append(c.callbacks, cb)
}

func (c *CallbackChain) Len() int {
	return len(c.callbacks)
}

func (c *CallbackChain) OnWeaponFire(p *player.Player) {
	for _, cb := range c.callbacks {
		cb.OnWeaponFire(p)
	}
}

func (c *CallbackChain) OnDryFire(p *player.Player) {
	for _, cb := range c.callbacks {
		cb.OnDryFire(p)
	}
}

func (c *CallbackChain) OnBrassEject(p *player.Player) {
	for _, cb := range c.callbacks {
		cb.OnBrassEject(p)
	}
}

func (c *CallbackChain) OnReloadStart(p *player.Player) {
	for _, cb := range c.callbacks {
		cb.OnReloadStart(p)
	}
}

func (c *CallbackChain) OnReloadComplete(p *player.Player, rounds int) {
	for _, cb := range c.callbacks {
		cb.OnReloadComplete(p, rounds)
	}
}

func (c *CallbackChain) OnReloadAbort(p *player.Player) {
	for _, cb := range c.callbacks {
		cb.OnReloadAbort(p)
	}
}

func (c *CallbackChain) OnReconcile(p *player.Player, ammo, stock int) {
	for _, cb := range c.callbacks {
		cb.OnReconcile(p, ammo, stock)
	}
}

func (c *CallbackChain) OnRestock(p *player.Player) {
	for _, cb := range c.callbacks {
		cb.OnRestock(p)
	}
}

// Dispatch forwards the signals of one tick to cb in evaluation order.
func Dispatch(cb Callbacks, p *player.Player, res weapon.TickResult) {
	if res.ReloadCompleted {
		cb.OnReloadComplete(p, res.RoundsLoaded)
	}
	if res.EjectedBrass {
		cb.OnBrassEject(p)
	}
	if res.ReloadAborted {
		cb.OnReloadAbort(p)
	}
	if res.DryFired {
		cb.OnDryFire(p)
	}
	if res.Fired {
		cb.OnWeaponFire(p)
	}
}

// LogCallbacks writes every weapon event to a structured logger at debug
// level.
type LogCallbacks struct {
	logger *slog.Logger
}

func NewLogCallbacks(logger *slog.Logger) *LogCallbacks {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogCallbacks{logger: logger}
}

func (l *LogCallbacks) attrs(p *player.Player) []any {
	args := []any{"player", p.ID, "name", p.GetName()}
	if w := p.GetWeapon(); w != nil {
		args = append(args, "weapon", w.Kind().String(), "ammo", w.Ammo(), "stock", w.Stock(), "time", w.Time())
	}
	return args
}

func (l *LogCallbacks) OnWeaponFire(p *player.Player) {
	l.logger.Debug("weapon fired", l.attrs(p)...)
}

func (l *LogCallbacks) OnDryFire(p *player.Player) {
	l.logger.Debug("dry fire", l.attrs(p)...)
}

func (l *LogCallbacks) OnBrassEject(p *player.Player) {
	l.logger.Debug("brass ejected", l.attrs(p)...)
}

func (l *LogCallbacks) OnReloadStart(p *player.Player) {
	l.logger.Debug("reload started", l.attrs(p)...)
}

func (l *LogCallbacks) OnReloadComplete(p *player.Player, rounds int) {
	l.logger.Debug("reload completed", append(l.attrs(p), "rounds", rounds)...)
}

func (l *LogCallbacks) OnReloadAbort(p *player.Player) {
	l.logger.Debug("reload aborted", l.attrs(p)...)
}

func (l *LogCallbacks) OnReconcile(p *player.Player, ammo, stock int) {
	l.logger.Debug("reload reconciled", append(l.attrs(p), "server_ammo", ammo, "server_stock", stock)...)
}

func (l *LogCallbacks) OnRestock(p *player.Player) {
	l.logger.Debug("restocked", l.attrs(p)...)
}
