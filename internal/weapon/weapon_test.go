package weapon

import (
	"errors"
	"math"
	"testing"

	"github.com/siohaza/weaponsim/internal/catalog"
)

func bulkSpec() catalog.Spec {
	return catalog.Spec{
		Name:        "carbine",
		FireDelay:   0.1,
		ClipSize:    8,
		MaxStock:    24,
		ReloadTime:  2.0,
		PelletCount: 1,
	}
}

func slowSpec() catalog.Spec {
	return catalog.Spec{
		Name:                "pump",
		FireDelay:           1.0,
		ClipSize:            8,
		MaxStock:            24,
		ReloadTime:          0.5,
		SlowReload:          true,
		InterruptibleReload: true,
		PelletCount:         8,
	}
}

func mustTick(t *testing.T, w *State, dt float64) TickResult {
	t.Helper()
	res, err := w.Tick(dt)
	if err != nil {
		t.Fatalf("tick(%v) failed: %v", dt, err)
	}
	return res
}

func expectAmmo(t *testing.T, w *State, ammo, stock int) {
	t.Helper()
	if w.Ammo() != ammo || w.Stock() != stock {
		t.Fatalf("expected ammo (%d,%d), got (%d,%d)", ammo, stock, w.Ammo(), w.Stock())
	}
}

func TestBulkFireAndReloadScenario(t *testing.T) {
	w := New(bulkSpec(), Predicted)
	expectAmmo(t, w, 8, 24)

	w.SetShooting(true)
	if res := mustTick(t, w, 0); !res.Fired {
		t.Fatalf("expected shot at t=0")
	}
	expectAmmo(t, w, 7, 24)
	if w.NextShotTime() != 0.1 {
		t.Fatalf("expected next shot at 0.1, got %v", w.NextShotTime())
	}

	if res := mustTick(t, w, 0.05); res.Fired {
		t.Fatalf("shot fired during cooldown")
	}
	if res := mustTick(t, w, 0.05); !res.Fired {
		t.Fatalf("expected shot at t=0.1")
	}
	expectAmmo(t, w, 6, 24)

	w.SetShooting(false)
	if got := w.Reload(); got != ReloadStarted {
		t.Fatalf("expected reload to start, got %v", got)
	}
	start, end := w.ReloadWindow()
	if start != 0.1 || end != 0.1+2.0 {
		t.Fatalf("unexpected reload window [%v,%v]", start, end)
	}

	res := mustTick(t, w, 2.0)
	if !res.ReloadCompleted || res.RoundsLoaded != 2 {
		t.Fatalf("expected completed reload of 2 rounds, got %#v", res)
	}
	if w.IsReloading() {
		t.Fatalf("reload must finish in the tick that crosses its end")
	}
	expectAmmo(t, w, 8, 22)
}

func TestSlowReloadScenario(t *testing.T) {
	w := NewWithAmmo(slowSpec(), Predicted, 0, 5)

	if got := w.Reload(); got != ReloadStarted {
		t.Fatalf("expected reload to start, got %v", got)
	}

	expected := [][2]int{{1, 4}, {2, 3}, {3, 2}, {4, 1}, {5, 0}}
	for i, want := range expected {
		res := mustTick(t, w, 0.5)
		if !res.ReloadCompleted || res.RoundsLoaded != 1 {
			t.Fatalf("window %d: expected one round, got %#v", i+1, res)
		}
		expectAmmo(t, w, want[0], want[1])

		if i < len(expected)-1 {
			if !w.IsReloading() {
				t.Fatalf("window %d: reload must reopen", i+1)
			}
			start, end := w.ReloadWindow()
			if start != w.Time() || end != w.Time()+0.5 {
				t.Fatalf("window %d: unexpected reopened window [%v,%v] at %v", i+1, start, end, w.Time())
			}
		}
	}

	if w.Time() != 2.5 {
		t.Fatalf("expected five windows to end at 2.5, got %v", w.Time())
	}
	if w.IsReloading() {
		t.Fatalf("reload must stop once stock is empty")
	}
}

func TestSlowReloadStopsWhenClipFull(t *testing.T) {
	w := NewWithAmmo(slowSpec(), Predicted, 6, 24)
	w.Reload()

	mustTick(t, w, 0.5)
	mustTick(t, w, 0.5)
	expectAmmo(t, w, 8, 22)
	if w.IsReloading() {
		t.Fatalf("reload must stop once clip is full")
	}
}

func TestSlowReloadLargeDeltaClosesAllWindows(t *testing.T) {
	w := NewWithAmmo(slowSpec(), Predicted, 0, 5)
	w.Reload()

	res := mustTick(t, w, 10)
	if res.RoundsLoaded != 5 {
		t.Fatalf("expected 5 rounds in one tick, got %d", res.RoundsLoaded)
	}
	expectAmmo(t, w, 5, 0)
	if w.IsReloading() {
		t.Fatalf("expected reload finished")
	}
}

func TestReloadReissueIsNoOp(t *testing.T) {
	w := NewWithAmmo(slowSpec(), Predicted, 2, 10)
	w.Reload()
	mustTick(t, w, 0.2)

	start, end := w.ReloadWindow()
	if got := w.Reload(); got != ReloadAlreadyInProgress {
		t.Fatalf("expected already reloading, got %v", got)
	}
	s2, e2 := w.ReloadWindow()
	if s2 != start || e2 != end {
		t.Fatalf("reissued reload must not move the window")
	}
}

func TestReloadOutcomes(t *testing.T) {
	full := New(bulkSpec(), Predicted)
	if got := full.Reload(); got != ReloadClipFull {
		t.Fatalf("expected clip full, got %v", got)
	}

	empty := NewWithAmmo(bulkSpec(), Predicted, 3, 0)
	if got := empty.Reload(); got != ReloadNoStock {
		t.Fatalf("expected no stock, got %v", got)
	}
	if empty.IsReloading() {
		t.Fatalf("no-op reload must not start")
	}

	busy := NewWithAmmo(bulkSpec(), Predicted, 3, 10)
	busy.Reload()
	if got := busy.Reload(); got != ReloadAlreadyInProgress {
		t.Fatalf("expected already reloading, got %v", got)
	}
}

func TestBulkReloadTransfersRemainingStock(t *testing.T) {
	w := NewWithAmmo(bulkSpec(), Predicted, 1, 3)
	w.Reload()

	res := mustTick(t, w, 2.0)
	if res.RoundsLoaded != 3 {
		t.Fatalf("expected 3 rounds, got %d", res.RoundsLoaded)
	}
	expectAmmo(t, w, 4, 0)
}

func TestCompletedReloadAllowsShotInSameTick(t *testing.T) {
	w := NewWithAmmo(bulkSpec(), Predicted, 0, 10)
	w.Reload()
	w.SetShooting(true)

	if res := mustTick(t, w, 1.0); res.Fired || res.DryFired {
		t.Fatalf("no shot or dry fire while reloading, got %#v", res)
	}

	res := mustTick(t, w, 1.0)
	if !res.ReloadCompleted || !res.Fired {
		t.Fatalf("expected reload completion and shot in one tick, got %#v", res)
	}
	expectAmmo(t, w, 7, 2)
}

func TestDryFireOncePerPress(t *testing.T) {
	w := NewWithAmmo(bulkSpec(), Predicted, 0, 0)
	w.SetShooting(true)

	dry := 0
	for i := 0; i < 10; i++ {
		res := mustTick(t, w, 0.016)
		if res.Fired {
			t.Fatalf("empty clip must never fire")
		}
		if res.DryFired {
			dry++
		}
	}
	if dry != 1 {
		t.Fatalf("expected one dry fire per press, got %d", dry)
	}
	if !w.LastShotWasDryFire() {
		t.Fatalf("expected dry fire flag")
	}
	expectAmmo(t, w, 0, 0)
	if w.NextShotTime() != 0 {
		t.Fatalf("dry fire must not advance next shot time")
	}

	w.SetShooting(false)
	mustTick(t, w, 0.016)
	w.SetShooting(true)
	if res := mustTick(t, w, 0.016); !res.DryFired {
		t.Fatalf("expected dry fire on new press")
	}
}

func TestInterruptibleReloadFiresChamberedRound(t *testing.T) {
	w := NewWithAmmo(slowSpec(), Predicted, 2, 10)
	w.Reload()
	mustTick(t, w, 0.2)

	w.SetShooting(true)
	res := mustTick(t, w, 0.1)
	if !res.ReloadAborted || !res.Fired {
		t.Fatalf("expected abort and shot, got %#v", res)
	}
	if w.IsReloading() {
		t.Fatalf("reload must be aborted")
	}
	expectAmmo(t, w, 1, 10)
}

func TestInterruptibleReloadWithEmptyClipDryFires(t *testing.T) {
	w := NewWithAmmo(slowSpec(), Predicted, 0, 10)
	w.Reload()
	w.SetShooting(true)

	res := mustTick(t, w, 0.1)
	if !res.ReloadAborted || !res.DryFired || res.Fired {
		t.Fatalf("expected abort and dry fire, got %#v", res)
	}
	if w.IsReloading() {
		t.Fatalf("reload must be aborted")
	}
	if !w.LastShotWasDryFire() {
		t.Fatalf("dry fire flag not set")
	}
	expectAmmo(t, w, 0, 10)

	// holding the trigger gives no second cue, and a new reload is allowed
	res = mustTick(t, w, 0.1)
	if res.DryFired || res.ReloadAborted {
		t.Fatalf("held trigger must stay quiet, got %#v", res)
	}
	w.SetShooting(false)
	mustTick(t, w, 0.1)
	if w.Reload() != ReloadStarted {
		t.Fatalf("reload must restart after the abort")
	}
}

func TestNonInterruptibleReloadBlocksFire(t *testing.T) {
	w := NewWithAmmo(bulkSpec(), Predicted, 4, 10)
	w.Reload()
	w.SetShooting(true)

	res := mustTick(t, w, 0.5)
	if res.Fired || res.ReloadAborted {
		t.Fatalf("fire must be blocked while reloading, got %#v", res)
	}
	if !w.IsReloading() {
		t.Fatalf("reload must continue")
	}
	expectAmmo(t, w, 4, 10)
}

func TestAbortReloadPreservesAmmo(t *testing.T) {
	w := NewWithAmmo(bulkSpec(), Predicted, 3, 10)
	w.Reload()
	mustTick(t, w, 1.5)

	if !w.AbortReload() {
		t.Fatalf("expected abort to succeed")
	}
	expectAmmo(t, w, 3, 10)
	if w.IsReloading() || w.ReloadProgress() != 0 {
		t.Fatalf("reload state must be cleared")
	}

	if w.AbortReload() {
		t.Fatalf("abort while idle must be a no-op")
	}

	mustTick(t, w, 5)
	expectAmmo(t, w, 3, 10)
	if got := w.Reload(); got != ReloadStarted {
		t.Fatalf("weapon must be reloadable after abort, got %v", got)
	}
}

func TestBrassEjection(t *testing.T) {
	spec := bulkSpec()
	spec.EjectsBrass = true
	spec.EjectBrassDelay = 0.5
	spec.FireDelay = 1.0

	w := New(spec, Predicted)
	w.SetShooting(true)
	mustTick(t, w, 0)
	w.SetShooting(false)

	if !w.IsUnejectedBrass() {
		t.Fatalf("expected pending brass after shot")
	}
	if res := mustTick(t, w, 0.25); res.EjectedBrass {
		t.Fatalf("brass ejected early")
	}
	if res := mustTick(t, w, 0.25); !res.EjectedBrass {
		t.Fatalf("expected brass eject at due time")
	}
	if res := mustTick(t, w, 0.1); res.EjectedBrass {
		t.Fatalf("brass must eject once")
	}
}

func TestBrassEjectionLargeDeltaSignalsOnce(t *testing.T) {
	spec := bulkSpec()
	spec.EjectsBrass = true
	spec.EjectBrassDelay = 0.05

	w := New(spec, Predicted)
	w.SetShooting(true)
	mustTick(t, w, 0)
	w.SetShooting(false)

	if res := mustTick(t, w, 100); !res.EjectedBrass {
		t.Fatalf("expected one eject signal")
	}
	if res := mustTick(t, w, 100); res.EjectedBrass {
		t.Fatalf("overdue ejects must not be replayed")
	}
}

func TestSemiAutomaticNeedsPressEdge(t *testing.T) {
	spec := bulkSpec()
	spec.SemiAutomatic = true

	w := New(spec, Predicted)
	w.SetShooting(true)

	fired := 0
	for i := 0; i < 10; i++ {
		if res := mustTick(t, w, 0.1); res.Fired {
			fired++
		}
	}
	if fired != 1 {
		t.Fatalf("expected one shot while held, got %d", fired)
	}

	w.SetShooting(false)
	mustTick(t, w, 0.1)
	w.SetShooting(true)
	if res := mustTick(t, w, 0.1); !res.Fired {
		t.Fatalf("expected shot on new press")
	}
}

func TestInvalidDeltaIsRejected(t *testing.T) {
	w := NewWithAmmo(bulkSpec(), Predicted, 5, 10)
	w.SetShooting(true)

	for _, dt := range []float64{-0.1, math.NaN(), math.Inf(1)} {
		res, err := w.Tick(dt)
		if !errors.Is(err, ErrInvalidDelta) {
			t.Fatalf("tick(%v): expected ErrInvalidDelta, got %v", dt, err)
		}
		if res != (TickResult{}) {
			t.Fatalf("tick(%v): expected empty result", dt)
		}
		if w.Time() != 0 || w.Ammo() != 5 {
			t.Fatalf("tick(%v): state changed", dt)
		}
	}

	if res := mustTick(t, w, 0); !res.Fired {
		t.Fatalf("instance must remain usable after invalid tick")
	}
}

func TestReloadDoneOverridesPrediction(t *testing.T) {
	w := NewWithAmmo(bulkSpec(), Predicted, 2, 20)
	w.Reload()
	mustTick(t, w, 0.5)

	w.ReloadDone(7, 15)
	if w.IsReloading() {
		t.Fatalf("reload done must clear reloading")
	}
	expectAmmo(t, w, 7, 15)

	w.ReloadDone(7, 15)
	expectAmmo(t, w, 7, 15)

	idle := New(bulkSpec(), Predicted)
	idle.ReloadDone(1, 2)
	expectAmmo(t, idle, 1, 2)

	idle.ReloadDone(99, -4)
	expectAmmo(t, idle, 8, 0)
}

func TestForceReloadDone(t *testing.T) {
	w := NewWithAmmo(bulkSpec(), Predicted, 3, 20)
	w.Reload()
	mustTick(t, w, 0.2)

	w.ForceReloadDone()
	if w.IsReloading() {
		t.Fatalf("force reload done must clear reloading")
	}
	expectAmmo(t, w, 8, 15)

	low := NewWithAmmo(slowSpec(), Predicted, 1, 2)
	low.Reload()
	low.ForceReloadDone()
	expectAmmo(t, low, 3, 0)
}

func TestRefillRestockReset(t *testing.T) {
	w := NewWithAmmo(bulkSpec(), Predicted, 2, 4)
	w.Reload()

	w.Refill(50, 50)
	if w.IsReloading() {
		t.Fatalf("refill must cancel reload")
	}
	expectAmmo(t, w, 8, 24)

	w.Refill(1, 0)
	w.Restock()
	expectAmmo(t, w, 1, 24)

	spec := bulkSpec()
	spec.EjectsBrass = true
	spec.EjectBrassDelay = 1
	r := New(spec, Predicted)
	r.SetShooting(true)
	mustTick(t, r, 0.3)
	r.Reload()
	r.Reset()

	if r.Time() != 0.3 {
		t.Fatalf("reset must keep the clock, got %v", r.Time())
	}
	expectAmmo(t, r, 8, 24)
	if r.IsReloading() || r.IsUnejectedBrass() || r.IsShooting() {
		t.Fatalf("reset left transient state behind")
	}
	if !r.IsReadyToShoot() {
		t.Fatalf("weapon must be ready after reset")
	}
}

func TestQueries(t *testing.T) {
	spec := bulkSpec()
	spec.LockSwitchDuringReload = true

	w := NewWithAmmo(spec, Predicted, 8, 24)
	if !w.IsClipFull() || !w.IsReadyToShoot() || !w.IsSelectable() {
		t.Fatalf("fresh weapon must be full, ready and selectable")
	}

	w.SetShooting(true)
	mustTick(t, w, 0)
	w.SetShooting(false)
	if w.IsClipFull() || w.IsReadyToShoot() {
		t.Fatalf("weapon just fired")
	}
	if got := w.TimeToNextFire(); got != 0.1 {
		t.Fatalf("expected 0.1 to next fire, got %v", got)
	}

	mustTick(t, w, 0.5)
	if got := w.TimeToNextFire(); got != 0 {
		t.Fatalf("time to next fire must not go negative, got %v", got)
	}

	w.Reload()
	if w.IsSelectable() {
		t.Fatalf("locked weapon must not be selectable while reloading")
	}
	mustTick(t, w, 1.0)
	if got := w.ReloadProgress(); got != 0.5 {
		t.Fatalf("expected half reload progress, got %v", got)
	}
	if w.IsAwaitingReloadCompletion() {
		t.Fatalf("reload not due yet")
	}
	if w.IsReadyToShoot() {
		t.Fatalf("cannot shoot while reloading")
	}

	mustTick(t, w, 1.0)
	if w.IsAwaitingReloadCompletion() || w.ReloadProgress() != 0 {
		t.Fatalf("completion must be applied within the tick")
	}
	if !w.IsSelectable() {
		t.Fatalf("weapon must be selectable after reload")
	}

	snap := w.Snapshot()
	if snap.Ammo != 8 || snap.Stock != 23 || snap.Name != "carbine" || snap.Mode != Predicted {
		t.Fatalf("unexpected snapshot %#v", snap)
	}
}

func TestReplicatedModeIgnoresTrigger(t *testing.T) {
	spec := bulkSpec()
	spec.EjectsBrass = true
	spec.EjectBrassDelay = 0.2

	w := New(spec, Replicated)
	w.SetShooting(true)
	if res := mustTick(t, w, 0.5); res.Fired {
		t.Fatalf("replicated instance must not fire from local ticking")
	}
	expectAmmo(t, w, 8, 24)

	w.ApplyRemoteFire()
	expectAmmo(t, w, 7, 24)
	if !w.IsUnejectedBrass() {
		t.Fatalf("remote shot must arm brass")
	}
	if res := mustTick(t, w, 0.2); !res.EjectedBrass {
		t.Fatalf("replicated instance must still eject brass")
	}

	w.Reload()
	w.ApplyRemoteFire()
	if w.IsReloading() {
		t.Fatalf("remote shot cancels the remote reload")
	}
	expectAmmo(t, w, 6, 24)

	empty := NewWithAmmo(spec, Replicated, 0, 0)
	empty.ApplyRemoteFire()
	expectAmmo(t, empty, 0, 0)
}

func TestReplicatedReloadCompletesLocally(t *testing.T) {
	w := NewWithAmmo(bulkSpec(), Replicated, 2, 10)
	if got := w.Reload(); got != ReloadStarted {
		t.Fatalf("expected reload, got %v", got)
	}
	res := mustTick(t, w, 2.0)
	if !res.ReloadCompleted {
		t.Fatalf("expected replicated reload to complete")
	}
	expectAmmo(t, w, 8, 4)
}
