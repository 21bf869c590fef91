package lua

import (
	"fmt"
	"log/slog"

	"github.com/siohaza/weaponsim/internal/player"
	"github.com/siohaza/weaponsim/internal/protocol"
	"github.com/siohaza/weaponsim/internal/session"
	"github.com/siohaza/weaponsim/internal/validation"
	"github.com/siohaza/weaponsim/internal/weapon"

	"github.com/Shopify/go-lua"
)

// WeaponAPI exposes a session's local weapon to scripts. Script time only
// moves through tick.
type WeaponAPI struct {
	session *session.Session
	vm      *VM
	logger  *slog.Logger
	now     float64
	maxTime float64
}

func NewWeaponAPI(s *session.Session, logger *slog.Logger) *WeaponAPI {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeaponAPI{
		session: s,
		logger:  logger,
	}
}

// SetMaxTime bounds how far scripts may advance the clock. Zero means no
// limit.
func (api *WeaponAPI) SetMaxTime(seconds float64) {
	api.maxTime = seconds
}

func (api *WeaponAPI) Now() float64 {
	return api.now
}

func (api *WeaponAPI) RegisterFunctions(vm *VM) {
	api.vm = vm
	vm.RegisterFunction("tick", api.tick)
	vm.RegisterFunction("now", api.getNow)
	vm.RegisterFunction("set_shooting", api.setShooting)
	vm.RegisterFunction("reload", api.reload)
	vm.RegisterFunction("abort_reload", api.abortReload)
	vm.RegisterFunction("refill", api.refill)
	vm.RegisterFunction("restock", api.restock)
	vm.RegisterFunction("reset", api.reset)
	vm.RegisterFunction("reload_done", api.reloadDone)
	vm.RegisterFunction("force_reload_done", api.forceReloadDone)
	vm.RegisterFunction("equip", api.equip)
	vm.RegisterFunction("weapon", api.getWeapon)
	vm.RegisterFunction("add_remote", api.addRemote)
	vm.RegisterFunction("remote_input", api.remoteInput)
	vm.RegisterFunction("after", api.scheduleCallback)
	vm.RegisterFunction("cancel", api.cancelCallback)
	vm.RegisterFunction("log", api.log)
}

func (api *WeaponAPI) localWeapon(state *lua.State) (*player.Player, *weapon.State) {
	p, ok := api.session.Local()
	if !ok || p.GetWeapon() == nil {
		lua.Errorf(state, "no local weapon")
		return nil, nil
	}
	return p, p.GetWeapon()
}

// tick(dt [, steps]) advances the session by steps ticks of dt seconds.
func (api *WeaponAPI) tick(state *lua.State) int {
	dt := lua.CheckNumber(state, 1)
	steps := lua.OptInteger(state, 2, 1)

	if !validation.IsValidDelta(dt) {
		lua.Errorf(state, "invalid delta time: %f", dt)
		return 0
	}

	for i := 0; i < steps; i++ {
		if api.maxTime > 0 && api.now+dt > api.maxTime {
			lua.Errorf(state, "scenario time limit of %f seconds exceeded", api.maxTime)
			return 0
		}

		api.session.Update(dt)
		api.now += dt

		if api.vm != nil {
			if err := api.vm.AdvanceTimers(api.now); err != nil {
				lua.Errorf(state, "%s", err.Error())
				return 0
			}
		}
	}

	state.PushNumber(api.now)
	return 1
}

func (api *WeaponAPI) getNow(state *lua.State) int {
	state.PushNumber(api.now)
	return 1
}

func (api *WeaponAPI) setShooting(state *lua.State) int {
	down := state.ToBoolean(1)
	if err := api.session.SetTrigger(down); err != nil {
		lua.Errorf(state, "%s", err.Error())
	}
	return 0
}

func (api *WeaponAPI) reload(state *lua.State) int {
	outcome, err := api.session.RequestReload()
	if err != nil {
		lua.Errorf(state, "%s", err.Error())
		return 0
	}
	state.PushString(outcome.String())
	return 1
}

func (api *WeaponAPI) abortReload(state *lua.State) int {
	p, w := api.localWeapon(state)
	if w == nil {
		return 0
	}
	aborted := w.AbortReload()
	if aborted {
		api.logger.Debug("reload aborted by script", "player", p.ID)
	}
	state.PushBoolean(aborted)
	return 1
}

func (api *WeaponAPI) refill(state *lua.State) int {
	_, w := api.localWeapon(state)
	if w == nil {
		return 0
	}
	ammo := lua.CheckInteger(state, 1)
	stock := lua.CheckInteger(state, 2)
	w.Refill(ammo, stock)
	return 0
}

// restock goes through the packet path so scripts see the same callbacks as
// a live server restock.
func (api *WeaponAPI) restock(state *lua.State) int {
	p, w := api.localWeapon(state)
	if w == nil {
		return 0
	}
	api.deliver(state, &protocol.PacketRestock{
		PacketID: uint8(protocol.PacketTypeRestock),
		PlayerID: p.ID,
	})
	return 0
}

func (api *WeaponAPI) reset(state *lua.State) int {
	_, w := api.localWeapon(state)
	if w == nil {
		return 0
	}
	w.Reset()
	return 0
}

// reload_done(ammo, stock) plays a server reload confirmation.
func (api *WeaponAPI) reloadDone(state *lua.State) int {
	p, w := api.localWeapon(state)
	if w == nil {
		return 0
	}
	ammo := validation.ClampAmmo(lua.CheckInteger(state, 1), protocol.MaxAmmo)
	stock := validation.ClampAmmo(lua.CheckInteger(state, 2), protocol.MaxAmmo)

	api.deliver(state, &protocol.PacketWeaponReload{
		PacketID:     uint8(protocol.PacketTypeWeaponReload),
		PlayerID:     p.ID,
		MagazineAmmo: uint8(ammo),
		ReserveAmmo:  uint8(stock),
	})
	return 0
}

func (api *WeaponAPI) forceReloadDone(state *lua.State) int {
	_, w := api.localWeapon(state)
	if w == nil {
		return 0
	}
	w.ForceReloadDone()
	return 0
}

// equip(name) returns true, or false and a reason.
func (api *WeaponAPI) equip(state *lua.State) int {
	name := lua.CheckString(state, 1)

	spec, ok := api.session.Catalog().ByName(name)
	if !ok {
		state.PushBoolean(false)
		state.PushString(fmt.Sprintf("unknown weapon %q", name))
		return 2
	}

	if err := api.session.ChangeWeapon(spec.Kind); err != nil {
		state.PushBoolean(false)
		state.PushString(err.Error())
		return 2
	}

	state.PushBoolean(true)
	return 1
}

// weapon([id]) returns the weapon table of a player, the local one by
// default.
func (api *WeaponAPI) getWeapon(state *lua.State) int {
	var p *player.Player
	if state.IsNumber(1) {
		id, _ := state.ToInteger(1)
		p, _ = api.session.Players().Get(uint8(id))
	} else {
		p, _ = api.session.Local()
	}

	if p == nil || p.GetWeapon() == nil {
		state.PushNil()
		return 1
	}
	PushWeapon(state, p.GetWeapon())
	return 1
}

func (api *WeaponAPI) addRemote(state *lua.State) int {
	id := lua.CheckInteger(state, 1)
	name := lua.CheckString(state, 2)
	weaponName := lua.OptString(state, 3, "rifle")

	spec, ok := api.session.Catalog().ByName(weaponName)
	if !ok {
		lua.Errorf(state, "unknown weapon %s", weaponName)
		return 0
	}
	if !validation.IsValidPlayerID(uint8(id), protocol.MaxPlayers) {
		lua.Errorf(state, "invalid player id %d", id)
		return 0
	}

	if _, err := api.session.AddRemotePlayer(uint8(id), name, 0, spec.Kind); err != nil {
		lua.Errorf(state, "%s", err.Error())
	}
	return 0
}

// remote_input(id, down) plays a server weapon input broadcast.
func (api *WeaponAPI) remoteInput(state *lua.State) int {
	id := lua.CheckInteger(state, 1)
	var input protocol.WeaponInput
	if state.ToBoolean(2) {
		input = protocol.WeaponInputPrimary
	}

	api.deliver(state, &protocol.PacketWeaponInput{
		PacketID:    uint8(protocol.PacketTypeWeaponInput),
		PlayerID:    uint8(id),
		WeaponInput: input,
	})
	return 0
}

func (api *WeaponAPI) deliver(state *lua.State, packet interface{}) {
	data, err := protocol.Marshal(packet)
	if err == nil {
		err = api.session.HandlePacket(data)
	}
	if err != nil {
		lua.Errorf(state, "%s", err.Error())
	}
}

// after(seconds, callback [, repeat]) returns a timer id.
func (api *WeaponAPI) scheduleCallback(state *lua.State) int {
	seconds, _ := state.ToNumber(1)
	callback, _ := state.ToString(2)
	repeat := false
	if state.Top() >= 3 && state.IsBoolean(3) {
		repeat = state.ToBoolean(3)
	}

	if api.vm == nil {
		state.PushInteger(-1)
		return 1
	}

	timerID := api.vm.RegisterTimer(callback, seconds, repeat)
	state.PushInteger(timerID)
	return 1
}

func (api *WeaponAPI) cancelCallback(state *lua.State) int {
	id, _ := state.ToInteger(1)

	if api.vm != nil {
		api.vm.CancelTimer(id)
	}

	return 0
}

func (api *WeaponAPI) log(state *lua.State) int {
	message, _ := state.ToString(1)
	api.logger.Info("script", "message", message, "time", api.now)
	return 0
}

func PushWeapon(state *lua.State, w *weapon.State) {
	snap := w.Snapshot()

	state.NewTable()
	state.PushString(snap.Name)
	state.SetField(-2, "name")
	state.PushInteger(int(snap.Kind))
	state.SetField(-2, "kind")
	state.PushString(snap.Mode.String())
	state.SetField(-2, "mode")
	state.PushNumber(snap.Time)
	state.SetField(-2, "time")
	state.PushInteger(snap.Ammo)
	state.SetField(-2, "ammo")
	state.PushInteger(snap.Stock)
	state.SetField(-2, "stock")
	state.PushBoolean(snap.Shooting)
	state.SetField(-2, "shooting")
	state.PushBoolean(snap.Reloading)
	state.SetField(-2, "reloading")
	state.PushNumber(snap.ReloadProgress)
	state.SetField(-2, "reload_progress")
	state.PushNumber(snap.TimeToNextFire)
	state.SetField(-2, "next_fire")
	state.PushBoolean(snap.UnejectedBrass)
	state.SetField(-2, "brass")
	state.PushBoolean(snap.DryFire)
	state.SetField(-2, "dry_fire")
	state.PushBoolean(w.IsReadyToShoot())
	state.SetField(-2, "ready")
	state.PushBoolean(w.IsSelectable())
	state.SetField(-2, "selectable")
}

func PushPlayer(state *lua.State, p *player.Player) {
	if p == nil {
		state.PushNil()
		return
	}

	state.NewTable()
	state.PushInteger(int(p.ID))
	state.SetField(-2, "id")
	state.PushString(p.GetName())
	state.SetField(-2, "name")
	state.PushBoolean(p.Local)
	state.SetField(-2, "local")

	if w := p.GetWeapon(); w != nil {
		PushWeapon(state, w)
		state.SetField(-2, "weapon")
	}
}
