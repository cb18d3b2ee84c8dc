// Package economy: общемировые экономические счётчики
package economy

import "sync/atomic"

// DebtPool: общий долг мира. Игроки гасят его у терминалов; значение не
// опускается ниже нуля.
type DebtPool struct {
	remaining atomic.Int64
}

// NewDebtPool создаёт пул с начальным долгом
func NewDebtPool(initial int64) *DebtPool {
	p := &DebtPool{}
	p.remaining.Store(max(initial, 0))
	return p
}

// Remaining возвращает остаток долга
func (p *DebtPool) Remaining() int64 {
	return p.remaining.Load()
}

// Pay гасит до amount кредитов и возвращает, сколько реально списано
func (p *DebtPool) Pay(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	for {
		cur := p.remaining.Load()
		if cur == 0 {
			return 0
		}
		paid := min(amount, cur)
		if p.remaining.CompareAndSwap(cur, cur-paid) {
			return paid
		}
	}
}

// Add увеличивает долг
func (p *DebtPool) Add(amount int64) {
	if amount > 0 {
		p.remaining.Add(amount)
	}
}
