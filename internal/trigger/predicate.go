package trigger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Shopify/go-lua"
)

const predicateGlobal = "__tile_condition"

// unsafeGlobals убираются из состояния сразу после открытия библиотек
var unsafeGlobals = []string{
	"dofile", "loadfile", "load", "loadstring", "require",
	"collectgarbage", "print", "rawset", "rawget", "rawequal",
	"setmetatable", "getmetatable", "_G",
}

// envGlobals: всё, что видит выражение. Таблицы копируются на каждое вычисление.
var (
	envFunctions = []string{"assert", "error", "ipairs", "next", "pairs", "select", "tonumber", "tostring", "type"}
	envTables    = []string{"string", "math"}
)

// Predicate: условие условного телепорта, скомпилированное один раз из выражения Lua.
// Выражение видит таблицу player: hp, max_hp, level, credits, x, y, layer, flags.
//
//	player.level >= 2 and player.flags.keycard
//
// Выражение выполняется в собственном окружении _ENV, которое собирается
// заново на каждое вычисление: глобальные переменные между вызовами не живут,
// файловых функций и load в нём нет. lua.State не потокобезопасен, поэтому
// вызовы сериализуются мьютексом предиката.
type Predicate struct {
	source string
	mu     sync.Mutex
	state  *lua.State
}

// CompilePredicate компилирует выражение. Пустое выражение даёт nil (всегда истинно).
func CompilePredicate(expr string) (*Predicate, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	l := lua.NewState()
	for _, lib := range []lua.RegistryFunction{
		{Name: "_G", Function: lua.BaseOpen},
		{Name: "string", Function: lua.StringOpen},
		{Name: "math", Function: lua.MathOpen},
	} {
		lua.Require(l, lib.Name, lib.Function, true)
		l.Pop(1)
	}
	for _, name := range unsafeGlobals {
		l.PushNil()
		l.SetGlobal(name)
	}

	chunk := "return function(player, _ENV) return (" + expr + ") end"
	if err := lua.LoadString(l, chunk); err != nil {
		return nil, fmt.Errorf("условие %q: %w", expr, err)
	}
	if err := l.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("условие %q: %w", expr, err)
	}
	if !l.IsFunction(-1) {
		return nil, fmt.Errorf("условие %q не является выражением", expr)
	}
	l.SetGlobal(predicateGlobal)

	return &Predicate{source: expr, state: l}, nil
}

// MustCompilePredicate: вариант для тестов и встроенных карт
func MustCompilePredicate(expr string) *Predicate {
	p, err := CompilePredicate(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// String возвращает исходное выражение
func (p *Predicate) String() string {
	if p == nil {
		return "true"
	}
	return p.source
}

// Eval вычисляет условие для снимка атрибутов. nil-предикат всегда истинен.
func (p *Predicate) Eval(a Attributes) (bool, error) {
	if p == nil {
		return true, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	l := p.state
	defer l.SetTop(0)

	l.Global(predicateGlobal)
	if !l.IsFunction(-1) {
		return false, errors.New("условие не скомпилировано")
	}
	pushAttributes(l, a)
	pushEnvironment(l)

	if err := l.ProtectedCall(2, 1, 0); err != nil {
		return false, err
	}
	return l.ToBoolean(-1), nil
}

// pushEnvironment кладёт на стек свежую таблицу окружения выражения
func pushEnvironment(l *lua.State) {
	l.NewTable()
	for _, name := range envFunctions {
		l.Global(name)
		l.SetField(-2, name)
	}
	for _, name := range envTables {
		l.NewTable()
		l.Global(name)
		l.PushNil()
		for l.Next(-2) {
			// стек: env, copy, src, key, value
			l.PushValue(-2)
			l.Insert(-2)
			l.RawSet(-5)
		}
		l.Pop(1)
		l.SetField(-2, name)
	}
}

func pushAttributes(l *lua.State, a Attributes) {
	l.NewTable()
	fields := []struct {
		name  string
		value int
	}{
		{"hp", a.HP},
		{"max_hp", a.MaxHP},
		{"level", a.Level},
		{"credits", a.Credits},
		{"x", a.X},
		{"y", a.Y},
		{"layer", a.Layer},
	}
	for _, f := range fields {
		l.PushInteger(f.value)
		l.SetField(-2, f.name)
	}

	// flags в стабильном порядке, чтобы состояние Lua не зависело от обхода map
	names := make([]string, 0, len(a.Flags))
	for name := range a.Flags {
		names = append(names, name)
	}
	sort.Strings(names)

	l.NewTable()
	for _, name := range names {
		l.PushBoolean(a.Flags[name])
		l.SetField(-2, name)
	}
	l.SetField(-2, "flags")
}
