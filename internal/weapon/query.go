package weapon

import (
	"github.com/siohaza/weaponsim/internal/catalog"
	"github.com/siohaza/weaponsim/internal/protocol"
)

func (w *State) Spec() catalog.Spec        { return w.spec }
func (w *State) Kind() protocol.WeaponType { return w.spec.Kind }
func (w *State) Mode() Mode                { return w.mode }
func (w *State) Time() float64             { return w.time }
func (w *State) Ammo() int                 { return w.ammo }
func (w *State) Stock() int                { return w.stock }
func (w *State) IsShooting() bool          { return w.shooting }
func (w *State) IsReloading() bool         { return w.reloading }
func (w *State) IsUnejectedBrass() bool    { return w.unejectedBrass }
func (w *State) LastShotWasDryFire() bool  { return w.lastDryFire }
func (w *State) NextShotTime() float64     { return w.nextShotTime }

func (w *State) ReloadWindow() (float64, float64) {
	return w.reloadStartTime, w.reloadEndTime
}

func (w *State) IsClipFull() bool {
	return w.ammo >= w.spec.ClipSize
}

// IsSelectable reports whether the player may switch to or away from this
// weapon right now.
func (w *State) IsSelectable() bool {
	return !(w.reloading && w.spec.LockSwitchDuringReload)
}

func (w *State) TimeToNextFire() float64 {
	return max(0, w.nextShotTime-w.time)
}

func (w *State) ReloadProgress() float64 {
	if !w.reloading {
		return 0
	}
	span := w.reloadEndTime - w.reloadStartTime
	if span <= 0 {
		return 1
	}
	return min(1, max(0, (w.time-w.reloadStartTime)/span))
}

func (w *State) IsAwaitingReloadCompletion() bool {
	return w.reloading && w.time >= w.reloadEndTime
}

func (w *State) IsReadyToShoot() bool {
	return !w.reloading && w.ammo > 0 && w.time >= w.nextShotTime
}

type Snapshot struct {
	Kind           protocol.WeaponType
	Name           string
	Mode           Mode
	Time           float64
	Ammo           int
	Stock          int
	Shooting       bool
	Reloading      bool
	ReloadProgress float64
	TimeToNextFire float64
	UnejectedBrass bool
	DryFire        bool
}

func (w *State) Snapshot() Snapshot {
	return Snapshot{
		Kind:           w.spec.Kind,
		Name:           w.spec.Name,
		Mode:           w.mode,
		Time:           w.time,
		Ammo:           w.ammo,
		Stock:          w.stock,
		Shooting:       w.shooting,
		Reloading:      w.reloading,
		ReloadProgress: w.ReloadProgress(),
		TimeToNextFire: w.TimeToNextFire(),
		UnejectedBrass: w.unejectedBrass,
		DryFire:        w.lastDryFire,
	}
}
