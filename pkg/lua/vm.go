package lua

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/Shopify/go-lua"
)

// VM is a sandboxed Lua state whose timers run on simulation time.
type VM struct {
	state     *lua.State
	timers    map[int]*Timer
	timerID   int
	timerLock sync.Mutex
	now       float64
}

type Timer struct {
	ID       int
	Callback string
	Interval float64
	Repeat   bool
	NextRun  float64
	Args     []interface{}
}

func NewVM() *VM {
	state := lua.NewState()
	openSafeLibraries(state)
	return &VM{
		state:  state,
		timers: make(map[int]*Timer),
	}
}

func openSafeLibraries(state *lua.State) {
	lua.OpenLibraries(state)

	state.PushNil()
	state.SetGlobal("io")

	state.PushNil()
	state.SetGlobal("os")

	state.PushNil()
	state.SetGlobal("debug")

	state.PushNil()
	state.SetGlobal("dofile")

	state.PushNil()
	state.SetGlobal("loadfile")
}

func (vm *VM) LoadFile(path string) error {
	if err := lua.DoFile(vm.state, path); err != nil {
		return fmt.Errorf("failed to load lua file %s: %w", path, err)
	}
	return nil
}

func (vm *VM) LoadString(code string) error {
	if err := lua.DoString(vm.state, code); err != nil {
		return fmt.Errorf("failed to load lua string: %w", err)
	}
	return nil
}

func (vm *VM) Close() {
	vm.timerLock.Lock()
	vm.timers = make(map[int]*Timer)
	vm.timerLock.Unlock()
}

// Now returns the simulation time seen by the last AdvanceTimers call.
func (vm *VM) Now() float64 {
	vm.timerLock.Lock()
	defer vm.timerLock.Unlock()
	return vm.now
}

// RegisterTimer schedules callback to run after the given number of
// simulated seconds.
func (vm *VM) RegisterTimer(callback string, after float64, repeat bool, args ...interface{}) int {
	vm.timerLock.Lock()
	defer vm.timerLock.Unlock()

	if after < 0 {
		after = 0
	}

	vm.timerID++
	timer := &Timer{
		ID:       vm.timerID,
		Callback: callback,
		Interval: after,
		Repeat:   repeat && after > 0,
		NextRun:  vm.now + after,
		Args:     args,
	}

	vm.timers[timer.ID] = timer
	return timer.ID
}

func (vm *VM) CancelTimer(id int) {
	vm.timerLock.Lock()
	defer vm.timerLock.Unlock()

	delete(vm.timers, id)
}

func (vm *VM) PendingTimers() int {
	vm.timerLock.Lock()
	defer vm.timerLock.Unlock()
	return len(vm.timers)
}

// AdvanceTimers moves the clock to now and runs every timer that came due,
// earliest first. A repeating timer runs at most once per call.
func (vm *VM) AdvanceTimers(now float64) error {
	vm.timerLock.Lock()
	if now > vm.now {
		vm.now = now
	}

	var toExecute []*Timer
	for _, timer := range vm.timers {
		if timer.NextRun <= vm.now {
			toExecute = append(toExecute, timer)
		}
	}

	sort.Slice(toExecute, func(i, j int) bool {
		if toExecute[i].NextRun != toExecute[j].NextRun {
			return toExecute[i].NextRun < toExecute[j].NextRun
		}
		return toExecute[i].ID < toExecute[j].ID
	})

	for _, timer := range toExecute {
		if timer.Repeat {
			timer.NextRun += timer.Interval
		} else {
			delete(vm.timers, timer.ID)
		}
	}
	vm.timerLock.Unlock()

	for _, timer := range toExecute {
		if err := vm.CallFunction(timer.Callback, timer.Args...); err != nil {
			return fmt.Errorf("timer callback %s failed: %w", timer.Callback, err)
		}
	}

	return nil
}

func (vm *VM) GetGlobalString(name string) (string, error) {
	vm.state.Global(name)
	if !vm.state.IsString(-1) {
		vm.state.Pop(1)
		return "", fmt.Errorf("global %s is not a string", name)
	}
	value, _ := vm.state.ToString(-1)
	vm.state.Pop(1)
	return value, nil
}

func (vm *VM) GetGlobalTable(name string) error {
	vm.state.Global(name)
	if !vm.state.IsTable(-1) {
		vm.state.Pop(1)
		return fmt.Errorf("global %s is not a table", name)
	}
	return nil
}

func (vm *VM) GetTableString(key string) (string, error) {
	vm.state.Field(-1, key)
	if !vm.state.IsString(-1) {
		vm.state.Pop(1)
		return "", fmt.Errorf("field %s is not a string", key)
	}
	value, _ := vm.state.ToString(-1)
	vm.state.Pop(1)
	return value, nil
}

func (vm *VM) GetTableNumber(key string) (float64, error) {
	vm.state.Field(-1, key)
	if !vm.state.IsNumber(-1) {
		vm.state.Pop(1)
		return 0, fmt.Errorf("field %s is not a number", key)
	}
	value, _ := vm.state.ToNumber(-1)
	vm.state.Pop(1)
	return value, nil
}

func (vm *VM) PopTable() {
	vm.state.Pop(1)
}

func (vm *VM) CallFunction(name string, args ...interface{}) error {
	vm.state.Global(name)
	if !vm.state.IsFunction(-1) {
		vm.state.Pop(1)
		return fmt.Errorf("global %s is not a function", name)
	}

	if err := vm.pushArgs(args); err != nil {
		return err
	}

	if err := vm.state.ProtectedCall(len(args), 0, 0); err != nil {
		return vm.enhanceError(fmt.Sprintf("function %s", name), err)
	}

	return nil
}

func (vm *VM) pushArgs(args []interface{}) error {
	for i, arg := range args {
		switch v := arg.(type) {
		case string:
			vm.state.PushString(v)
		case int:
			vm.state.PushInteger(v)
		case float64:
			vm.state.PushNumber(v)
		case bool:
			vm.state.PushBoolean(v)
		case nil:
			vm.state.PushNil()
		default:
			vm.state.Pop(i + 1)
			return fmt.Errorf("unsupported argument type: %T", arg)
		}
	}
	return nil
}

func (vm *VM) enhanceError(context string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[Lua Error] %s: %w", context, err)
}

func (vm *VM) HasFunction(name string) bool {
	vm.state.Global(name)
	isFunc := vm.state.IsFunction(-1)
	vm.state.Pop(1)
	return isFunc
}

func (vm *VM) RegisterFunction(name string, fn lua.Function) {
	vm.state.Register(name, fn)
}

func (vm *VM) State() *lua.State {
	return vm.state
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
