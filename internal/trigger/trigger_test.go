package trigger

import (
	"testing"

	"github.com/annel0/tileworld/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTarget struct {
	pos        vec.Vec3
	hp, maxHP  int
	level      int
	flags      map[string]bool
	travelling string
}

func (f *fakeTarget) Pos() vec.Vec3               { return f.pos }
func (f *fakeTarget) Teleport(to vec.Vec3)        { f.pos = to }
func (f *fakeTarget) Health() (int, int)          { return f.hp, f.maxHP }
func (f *fakeTarget) SetHealth(hp int)            { f.hp = hp }
func (f *fakeTarget) AdjustHealth(delta int) int  { f.hp = min(f.hp+delta, f.maxHP); return f.hp }
func (f *fakeTarget) BeginTravel(lineID string)   { f.travelling = lineID }
func (f *fakeTarget) Snapshot() Attributes {
	return Attributes{HP: f.hp, MaxHP: f.maxHP, Level: f.level, X: f.pos.X, Y: f.pos.Y, Layer: f.pos.Layer, Flags: f.flags}
}

type recordingMetro struct{ lines []string }

func (r *recordingMetro) Enter(_ Target, lineID string) { r.lines = append(r.lines, lineID) }

func newTarget() *fakeTarget {
	return &fakeTarget{pos: vec.Vec3{X: 1, Y: 1}, hp: 50, maxHP: 100, level: 1}
}

func TestDispatch_Teleport(t *testing.T) {
	d := DefaultDispatch()
	target := newTarget()
	dest := vec.Vec3{X: 7, Y: 3, Layer: 1}

	applied := d.Fire(Teleport{Target: dest}, target, Context{LayerCount: 2})

	assert.True(t, applied)
	assert.Equal(t, dest, target.pos, "телепорт должен безусловно переносить цель")
}

func TestDispatch_TeleportToMissingLayerFailsSafely(t *testing.T) {
	d := DefaultDispatch()
	target := newTarget()
	start := target.pos

	applied := d.Fire(Teleport{Target: vec.Vec3{X: 1, Y: 1, Layer: 5}}, target, Context{LayerCount: 2})

	assert.False(t, applied)
	assert.Equal(t, start, target.pos, "позиция не должна меняться при несуществующем слое")
}

func TestDispatch_ConditionalTeleport(t *testing.T) {
	d := DefaultDispatch()
	dest := vec.Vec3{X: 9, Y: 9, Layer: 0}

	tests := []struct {
		name  string
		expr  string
		level int
		flags map[string]bool
		moved bool
	}{
		{"пустое условие: всегда истина", "", 1, nil, true},
		{"условие истинно", "player.level >= 2", 3, nil, true},
		{"условие ложно", "player.level >= 2", 1, nil, false},
		{"флаг присутствует", "player.flags.keycard == true", 1, map[string]bool{"keycard": true}, true},
		{"флаг отсутствует", "player.flags.keycard == true", 1, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := CompilePredicate(tt.expr)
			require.NoError(t, err)

			target := newTarget()
			target.level = tt.level
			target.flags = tt.flags
			start := target.pos

			applied := d.Fire(ConditionalTeleport{Teleport: Teleport{Target: dest}, Predicate: pred}, target, Context{})

			assert.Equal(t, tt.moved, applied)
			if tt.moved {
				assert.Equal(t, dest, target.pos)
			} else {
				assert.Equal(t, start, target.pos, "ложное условие: тихий no-op")
			}
		})
	}
}

func TestDispatch_ConditionalTeleportRuntimeErrorIsNoop(t *testing.T) {
	d := DefaultDispatch()
	target := newTarget()
	start := target.pos

	// сравнение nil с числом падает во время выполнения
	pred := MustCompilePredicate("player.missing > 1")
	applied := d.Fire(ConditionalTeleport{Teleport: Teleport{Target: vec.Vec3{X: 3}}, Predicate: pred}, target, Context{})

	assert.False(t, applied)
	assert.Equal(t, start, target.pos)
}

func TestDispatch_DamageDoesNotClampOrKill(t *testing.T) {
	d := DefaultDispatch()
	target := newTarget()

	d.Fire(Damage{Amount: 80}, target, Context{})

	assert.Equal(t, -30, target.hp, "урон не проверяет смерть и не ограничивает HP снизу")
}

func TestDispatch_HealClampsAtMax(t *testing.T) {
	d := DefaultDispatch()
	target := newTarget()

	d.Fire(Heal{Amount: 30}, target, Context{})
	assert.Equal(t, 80, target.hp)

	d.Fire(&Heal{Amount: 500}, target, Context{})
	assert.Equal(t, 100, target.hp, "лечение ограничено maxHP")
}

func TestDispatch_MetroEntry(t *testing.T) {
	d := DefaultDispatch()
	target := newTarget()
	metro := &recordingMetro{}

	applied := d.Fire(MetroEntry{LineID: "red"}, target, Context{Metro: metro})

	assert.True(t, applied)
	assert.Equal(t, "red", target.travelling)
	assert.Equal(t, 100, target.hp, "вход в метро полностью восстанавливает HP")
	assert.Equal(t, []string{"red"}, metro.lines)
}

type unknownTrigger struct{ Damage }

func (unknownTrigger) Kind() Kind { return "lava" }

func TestDispatch_UnknownAndNilAreNoops(t *testing.T) {
	d := DefaultDispatch()
	target := newTarget()

	assert.NotPanics(t, func() {
		assert.False(t, d.Fire(nil, target, Context{}))
		assert.False(t, d.Fire(unknownTrigger{}, target, Context{}))
	})
	assert.Equal(t, 50, target.hp)
}

func TestPredicate_NoFileOrLoaderAccess(t *testing.T) {
	attrs := Attributes{Level: 1}
	for _, expr := range []string{
		"dofile == nil",
		"loadfile == nil and load == nil and loadstring == nil",
		"require == nil and _G == nil",
		"rawset == nil and setmetatable == nil",
		"math.floor(2.5) == 2 and string.upper('a') == 'A'",
	} {
		ok, err := MustCompilePredicate(expr).Eval(attrs)
		require.NoError(t, err, expr)
		assert.True(t, ok, expr)
	}

	_, err := MustCompilePredicate("dofile('/etc/passwd')").Eval(attrs)
	assert.Error(t, err, "вызов отсутствующей функции падает")
}

func TestPredicate_GlobalsDoNotSurviveEvaluation(t *testing.T) {
	counter := MustCompilePredicate("(function() seen = (seen or 0) + 1 return seen end)() == 1")
	clobber := MustCompilePredicate("string.upper ~= nil and (function() string.upper = nil return true end)()")

	for i := 0; i < 3; i++ {
		ok, err := counter.Eval(Attributes{})
		require.NoError(t, err)
		assert.True(t, ok, "вычисление %d видит глобальную переменную прошлого вызова", i)

		ok, err = clobber.Eval(Attributes{})
		require.NoError(t, err)
		assert.True(t, ok, "вычисление %d видит испорченную библиотеку", i)
	}
}

func TestCompilePredicate_SyntaxError(t *testing.T) {
	_, err := CompilePredicate("player.level >=")
	assert.Error(t, err, "синтаксическая ошибка должна обнаруживаться при загрузке")
}

func TestDestination(t *testing.T) {
	dest := vec.Vec3{X: 2, Y: 3, Layer: 1}

	got, ok := Destination(ConditionalTeleport{Teleport: Teleport{Target: dest}})
	assert.True(t, ok)
	assert.Equal(t, dest, got)

	_, ok = Destination(Heal{Amount: 1})
	assert.False(t, ok)
}
