package weapon

import (
	"errors"
	"fmt"

	"github.com/siohaza/weaponsim/internal/catalog"
	"github.com/siohaza/weaponsim/internal/validation"
)

var ErrInvalidDelta = errors.New("invalid delta time")

// Mode selects how an instance is driven. Predicted instances run the full
// firing logic from local input; Replicated instances only follow events
// received from the server.
type Mode int

const (
	Predicted Mode = iota
	Replicated
)

func (m Mode) String() string {
	if m == Replicated {
		return "replicated"
	}
	return "predicted"
}

type ReloadOutcome int

const (
	ReloadStarted ReloadOutcome = iota
	ReloadAlreadyInProgress
	ReloadClipFull
	ReloadNoStock
)

func (r ReloadOutcome) String() string {
	switch r {
	case ReloadStarted:
		return "started"
	case ReloadAlreadyInProgress:
		return "already reloading"
	case ReloadClipFull:
		return "clip full"
	case ReloadNoStock:
		return "no stock"
	default:
		return "unknown"
	}
}

type TickResult struct {
	Fired           bool
	DryFired        bool
	EjectedBrass    bool
	ReloadCompleted bool
	ReloadAborted   bool
	RoundsLoaded    int
}

type State struct {
	spec catalog.Spec
	mode Mode

	time               float64
	shooting           bool
	shootingPreviously bool
	reloading          bool
	unejectedBrass     bool
	nextShotTime       float64
	ejectBrassTime     float64
	reloadStartTime    float64
	reloadEndTime      float64
	lastDryFire        bool

	ammo  int
	stock int
}

func New(spec catalog.Spec, mode Mode) *State {
	return NewWithAmmo(spec, mode, spec.ClipSize, spec.MaxStock)
}

// NewWithAmmo builds an instance from a join or respawn snapshot.
func NewWithAmmo(spec catalog.Spec, mode Mode, ammo, stock int) *State {
	return &State{
		spec:  spec,
		mode:  mode,
		ammo:  validation.ClampAmmo(ammo, spec.ClipSize),
		stock: validation.ClampAmmo(stock, spec.MaxStock),
	}
}

// Tick advances the clock by dt and evaluates reload completion, brass
// ejection and firing, in that order. At most one shot fires per call.
func (w *State) Tick(dt float64) (TickResult, error) {
	var res TickResult
	if !validation.IsValidDelta(dt) {
		return res, fmt.Errorf("%w: %v", ErrInvalidDelta, dt)
	}

	w.time += dt

	if w.reloading && w.time >= w.reloadEndTime {
		res.RoundsLoaded = w.completeReload()
		res.ReloadCompleted = true
	}

	if w.unejectedBrass && w.time >= w.ejectBrassTime {
		w.unejectedBrass = false
		res.EjectedBrass = true
	}

	if w.mode == Predicted && w.shooting {
		w.pullTrigger(&res)
	}

	w.shootingPreviously = w.shooting
	return res, nil
}

func (w *State) pullTrigger(res *TickResult) {
	pressed := !w.shootingPreviously

	if w.reloading {
		if !w.spec.InterruptibleReload {
			return
		}
		w.reloading = false
		res.ReloadAborted = true
	}

	if w.ammo == 0 {
		if pressed {
			w.lastDryFire = true
			res.DryFired = true
		}
		return
	}

	if w.time < w.nextShotTime {
		return
	}
	if w.spec.SemiAutomatic && !pressed {
		return
	}

	w.registerShot()
	res.Fired = true
}

func (w *State) registerShot() {
	w.ammo--
	w.nextShotTime = w.time + w.spec.FireDelay
	if w.spec.EjectsBrass {
		w.unejectedBrass = true
		w.ejectBrassTime = w.time + w.spec.EjectBrassDelay
	}
	w.lastDryFire = false
}

// completeReload closes every window the clock has passed and returns the
// number of rounds moved from stock to clip.
func (w *State) completeReload() int {
	loaded := 0
	for w.reloading && w.time >= w.reloadEndTime {
		if !w.spec.SlowReload {
			loaded += w.transferBulk()
			w.reloading = false
			break
		}

		if w.ammo < w.spec.ClipSize && w.stock > 0 {
			w.ammo++
			w.stock--
			loaded++
		}

		if w.ammo < w.spec.ClipSize && w.stock > 0 {
			w.reloadStartTime = w.reloadEndTime
			w.reloadEndTime = w.reloadStartTime + w.spec.ReloadTime
		} else {
			w.reloading = false
		}
	}
	return loaded
}

func (w *State) transferBulk() int {
	n := min(w.spec.ClipSize-w.ammo, w.stock)
	if n < 0 {
		n = 0
	}
	w.ammo += n
	w.stock -= n
	return n
}

func (w *State) SetShooting(shooting bool) {
	w.shooting = shooting
}

func (w *State) Reload() ReloadOutcome {
	if w.reloading {
		return ReloadAlreadyInProgress
	}
	if w.ammo >= w.spec.ClipSize {
		return ReloadClipFull
	}
	if w.stock == 0 {
		return ReloadNoStock
	}

	w.reloading = true
	w.reloadStartTime = w.time
	w.reloadEndTime = w.time + w.spec.ReloadTime
	return ReloadStarted
}

// AbortReload cancels the current window without granting its ammo. It
// reports whether a reload was in progress.
func (w *State) AbortReload() bool {
	if !w.reloading {
		return false
	}
	w.reloading = false
	return true
}

func (w *State) Refill(ammo, stock int) {
	w.ammo = validation.ClampAmmo(ammo, w.spec.ClipSize)
	w.stock = validation.ClampAmmo(stock, w.spec.MaxStock)
	w.reloading = false
}

func (w *State) Restock() {
	w.stock = w.spec.MaxStock
}

func (w *State) Reset() {
	w.ammo = w.spec.ClipSize
	w.stock = w.spec.MaxStock
	w.shooting = false
	w.shootingPreviously = false
	w.reloading = false
	w.unejectedBrass = false
	w.lastDryFire = false
	w.nextShotTime = w.time
}

// ReloadDone applies the server-confirmed outcome of a reload. It always
// overrides local prediction.
func (w *State) ReloadDone(ammo, stock int) {
	w.reloading = false
	w.ammo = validation.ClampAmmo(ammo, w.spec.ClipSize)
	w.stock = validation.ClampAmmo(stock, w.spec.MaxStock)
}

// ForceReloadDone resolves a reload with the locally predicted ammo, for
// when no confirmation will arrive.
func (w *State) ForceReloadDone() {
	w.transferBulk()
	w.reloading = false
}

// ApplyRemoteFire registers a shot reported by the server for a replicated
// player. Cooldown and reload state do not gate it.
func (w *State) ApplyRemoteFire() {
	w.reloading = false
	if w.ammo == 0 {
		w.nextShotTime = w.time + w.spec.FireDelay
		return
	}
	w.registerShot()
}
