package scenario

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/siohaza/weaponsim/internal/player"
	"github.com/siohaza/weaponsim/internal/session"
	"github.com/siohaza/weaponsim/pkg/lua"
)

var ErrScriptNotFound = errors.New("scenario script not found")

// LuaScenario runs a script against an offline session and forwards weapon
// events to the script's on_* hooks.
type LuaScenario struct {
	vm      *lua.VM
	api     *lua.WeaponAPI
	session *session.Session
	name    string
	weapon  string
	hookErr error
	logger  *slog.Logger
}

func NewLuaScenario(s *session.Session, logger *slog.Logger) *LuaScenario {
	if logger == nil {
		logger = slog.Default()
	}

	vm := lua.NewVM()
	api := lua.NewWeaponAPI(s, logger)
	api.RegisterFunctions(vm)

	sc := &LuaScenario{
		vm:      vm,
		api:     api,
		session: s,
		name:    "lua_scenario",
		logger:  logger,
	}
	s.RegisterCallbacks(sc)
	return sc
}

func (sc *LuaScenario) LoadFile(path string) error {
	if !lua.FileExists(path) {
		return fmt.Errorf("%w: %s", ErrScriptNotFound, path)
	}
	if err := sc.vm.LoadFile(path); err != nil {
		return fmt.Errorf("failed to load scenario script: %w", err)
	}
	sc.readHeader()
	return nil
}

func (sc *LuaScenario) LoadString(code string) error {
	if err := sc.vm.LoadString(code); err != nil {
		return fmt.Errorf("failed to load scenario script: %w", err)
	}
	sc.readHeader()
	return nil
}

// readHeader picks up the optional global table
// scenario = { name = "...", weapon = "..." }.
func (sc *LuaScenario) readHeader() {
	if err := sc.vm.GetGlobalTable("scenario"); err != nil {
		return
	}
	defer sc.vm.PopTable()

	if name, err := sc.vm.GetTableString("name"); err == nil {
		sc.name = name
	}
	if weapon, err := sc.vm.GetTableString("weapon"); err == nil {
		sc.weapon = weapon
	}
	if limit, err := sc.vm.GetTableNumber("max_time"); err == nil && limit > 0 {
		sc.api.SetMaxTime(limit)
	}
}

func (sc *LuaScenario) Name() string {
	return sc.name
}

// Weapon is the weapon the script asks for, empty if it does not care.
func (sc *LuaScenario) Weapon() string {
	return sc.weapon
}

func (sc *LuaScenario) SetMaxTime(seconds float64) {
	sc.api.SetMaxTime(seconds)
}

func (sc *LuaScenario) Now() float64 {
	return sc.api.Now()
}

func (sc *LuaScenario) VM() *lua.VM {
	return sc.vm
}

// Run calls on_init and then main, when the script defines them.
func (sc *LuaScenario) Run() error {
	if sc.vm.HasFunction("on_init") {
		if err := sc.vm.CallFunction("on_init"); err != nil {
			return fmt.Errorf("failed to call on_init: %w", err)
		}
	}

	if sc.vm.HasFunction("main") {
		if err := sc.vm.CallFunction("main"); err != nil {
			return fmt.Errorf("scenario %s failed: %w", sc.name, err)
		}
	}

	if sc.hookErr != nil {
		return fmt.Errorf("scenario %s failed: %w", sc.name, sc.hookErr)
	}

	sc.logger.Info("scenario finished", "name", sc.name, "time", sc.api.Now())
	return nil
}

func (sc *LuaScenario) Close() {
	sc.vm.Close()
}

func (sc *LuaScenario) call(hook string, p *player.Player, extra ...int) {
	if !sc.vm.HasFunction(hook) {
		return
	}

	state := sc.vm.State()
	state.Global(hook)
	lua.PushPlayer(state, p)
	for _, v := range extra {
		state.PushInteger(v)
	}
	if err := state.ProtectedCall(1+len(extra), 0, 0); err != nil {
		sc.logger.Error("lua scenario hook error", "hook", hook, "error", err)
		if sc.hookErr == nil {
			sc.hookErr = fmt.Errorf("hook %s failed: %w", hook, err)
		}
	}
}

func (sc *LuaScenario) OnWeaponFire(p *player.Player) {
	sc.call("on_weapon_fire", p)
}

func (sc *LuaScenario) OnDryFire(p *player.Player) {
	sc.call("on_dry_fire", p)
}

func (sc *LuaScenario) OnBrassEject(p *player.Player) {
	sc.call("on_brass_eject", p)
}

func (sc *LuaScenario) OnReloadStart(p *player.Player) {
	sc.call("on_reload_start", p)
}

func (sc *LuaScenario) OnReloadComplete(p *player.Player, rounds int) {
	sc.call("on_reload_complete", p, rounds)
}

func (sc *LuaScenario) OnReloadAbort(p *player.Player) {
	sc.call("on_reload_abort", p)
}

func (sc *LuaScenario) OnReconcile(p *player.Player, ammo, stock int) {
	sc.call("on_reconcile", p, ammo, stock)
}

func (sc *LuaScenario) OnRestock(p *player.Player) {
	sc.call("on_restock", p)
}
