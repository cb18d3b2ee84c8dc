// Package trigger описывает эффекты, срабатывающие при входе на тайл,
// и таблицу обработчиков, по которой они диспетчеризуются.
package trigger

import "github.com/annel0/tileworld/internal/vec"

// Kind: дискриминатор варианта триггера (поле "type" в данных карты)
type Kind string

const (
	KindTeleport            Kind = "teleport"
	KindConditionalTeleport Kind = "conditional_teleport"
	KindDamage              Kind = "damage"
	KindHeal                Kind = "heal"
	KindMetroEntry          Kind = "metro_entry"
)

// Trigger: закрытый набор вариантов. Реализации живут только в этом пакете.
type Trigger interface {
	Kind() Kind
	sealed()
}

// Teleport безусловно переносит цель в Target
type Teleport struct {
	Target vec.Vec3
}

// ConditionalTeleport переносит цель, только если предикат истинен.
// nil-предикат считается всегда истинным.
type ConditionalTeleport struct {
	Teleport
	Predicate *Predicate
}

// Damage уменьшает HP на Amount. Смерть здесь не проверяется.
type Damage struct {
	Amount int
}

// Heal увеличивает HP на Amount, но не выше максимума
type Heal struct {
	Amount int
}

// MetroEntry переводит цель в состояние поездки и полностью лечит
type MetroEntry struct {
	LineID string
}

func (Teleport) Kind() Kind            { return KindTeleport }
func (ConditionalTeleport) Kind() Kind { return KindConditionalTeleport }
func (Damage) Kind() Kind              { return KindDamage }
func (Heal) Kind() Kind                { return KindHeal }
func (MetroEntry) Kind() Kind          { return KindMetroEntry }

func (Teleport) sealed()            {}
func (ConditionalTeleport) sealed() {}
func (Damage) sealed()              {}
func (Heal) sealed()                {}
func (MetroEntry) sealed()          {}

// Destination возвращает точку назначения для телепортов (включая условные).
// Используется анализом достижимости: через такие тайлы можно попасть в другую точку карты.
func Destination(t Trigger) (vec.Vec3, bool) {
	switch v := t.(type) {
	case Teleport:
		return v.Target, true
	case *Teleport:
		if v != nil {
			return v.Target, true
		}
	case ConditionalTeleport:
		return v.Target, true
	case *ConditionalTeleport:
		if v != nil {
			return v.Target, true
		}
	}
	return vec.Vec3{}, false
}
