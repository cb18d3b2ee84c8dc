package trigger

func onTeleport(t Trigger, target Target, ctx Context) bool {
	var tp Teleport
	switch v := t.(type) {
	case Teleport:
		tp = v
	case *Teleport:
		tp = *v
	default:
		return false
	}
	return applyTeleport(tp, target, ctx)
}

func applyTeleport(tp Teleport, target Target, ctx Context) bool {
	if !ctx.layerAllowed(tp.Target.Layer) {
		return false
	}
	target.Teleport(tp.Target)
	return true
}

func (d *Dispatch) onConditionalTeleport(t Trigger, target Target, ctx Context) bool {
	var ct ConditionalTeleport
	switch v := t.(type) {
	case ConditionalTeleport:
		ct = v
	case *ConditionalTeleport:
		ct = *v
	default:
		return false
	}

	ok, err := ct.Predicate.Eval(target.Snapshot())
	if err != nil {
		d.logger.Warn("Ошибка вычисления условия %q на карте %s: %v", ct.Predicate.String(), ctx.MapID, err)
		return false
	}
	if !ok {
		return false
	}
	return applyTeleport(ct.Teleport, target, ctx)
}

func onDamage(t Trigger, target Target, _ Context) bool {
	var amount int
	switch v := t.(type) {
	case Damage:
		amount = v.Amount
	case *Damage:
		amount = v.Amount
	default:
		return false
	}

	target.AdjustHealth(-amount)
	return true
}

func onHeal(t Trigger, target Target, _ Context) bool {
	var amount int
	switch v := t.(type) {
	case Heal:
		amount = v.Amount
	case *Heal:
		amount = v.Amount
	default:
		return false
	}

	target.AdjustHealth(amount)
	return true
}

func onMetroEntry(t Trigger, target Target, ctx Context) bool {
	var line string
	switch v := t.(type) {
	case MetroEntry:
		line = v.LineID
	case *MetroEntry:
		line = v.LineID
	default:
		return false
	}

	target.BeginTravel(line)
	_, maxHP := target.Health()
	target.SetHealth(maxHP)

	if ctx.Metro != nil {
		ctx.Metro.Enter(target, line)
	}
	return true
}
