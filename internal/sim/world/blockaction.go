package world

import (
	"voxelsiege.gg/internal/ext"
	"voxelsiege.gg/internal/protocol"
	"voxelsiege.gg/internal/sim/terrain"
)

// Action kinds double as rate-limit clock keys on the player session.
const (
	actBuild        = "build"
	actDestroy      = "destroy"
	actDestroyThree = "destroy3"
)

// applyBlockAction runs the full validator pipeline for one requested edit.
// Rejections are silent on the wire: the request is dropped, the reason goes
// to the audit log only. A committed edit is fully applied, cascade included,
// before the next request is read.
func (w *World) applyBlockAction(p *Player, m protocol.BlockActionMsg) {
	pos := terrain.Pos{X: m.Pos[0], Y: m.Pos[1], Z: m.Pos[2]}

	if !p.Alive {
		w.audit(p.ID, m.Kind, pos, protocol.DenyTool)
		return
	}
	if !w.terrain.InBounds(pos) {
		w.audit(p.ID, m.Kind, pos, protocol.DenyOutOfBounds)
		return
	}
	if pos.Z >= w.cfg.BedrockZ {
		w.audit(p.ID, m.Kind, pos, protocol.DenyBedrock)
		return
	}
	if !w.gamemode.AreaPermitsEdit(pos) {
		w.audit(p.ID, m.Kind, pos, protocol.DenyArea)
		return
	}

	switch m.Kind {
	case protocol.ActionBuild:
		w.applyBuild(p, pos, m.Color)
	case protocol.ActionDestroyOne:
		w.applyDestroyOne(p, pos)
	case protocol.ActionDestroyThree:
		w.applyDestroyThree(p, pos)
	}
}

func (w *World) applyBuild(p *Player, pos terrain.Pos, color uint32) {
	if !w.withinReach(p, pos) {
		w.audit(p.ID, protocol.ActionBuild, pos, protocol.DenyDistance)
		return
	}
	now := w.now()
	if !p.delayElapsed(actBuild, now, int64(w.cfg.BuildDelay)) {
		w.audit(p.ID, protocol.ActionBuild, pos, protocol.DenyRateLimit)
		return
	}
	if w.terrain.IsSolid(pos) {
		w.audit(p.ID, protocol.ActionBuild, pos, protocol.DenyOccupied)
		return
	}
	if p.Blocks <= 0 {
		w.audit(p.ID, protocol.ActionBuild, pos, protocol.DenyNoResource)
		return
	}
	if w.onObjective(pos) {
		w.audit(p.ID, protocol.ActionBuild, pos, protocol.DenyObjective)
		return
	}

	if color == 0 {
		color = p.ToolColor
	}
	blk := ext.Block{X: pos.X, Y: pos.Y, Z: pos.Z, Color: color}
	if w.reg.DispatchBlockPlace(w.host, p.ID, &blk) == ext.ResultDeny {
		w.audit(p.ID, protocol.ActionBuild, pos, protocol.DenyVetoed)
		return
	}

	w.terrain.SetSolid(pos, blk.Color)
	p.Blocks--
	p.markAction(actBuild, now)
	w.broadcastSet(pos, blk.Color, p.ID)
	w.logEdit(p.ID, protocol.ActionBuild, pos, blk.Color, 0)
}

func (w *World) applyDestroyOne(p *Player, pos terrain.Pos) {
	ranged := p.Tool == protocol.ToolGun
	if !ranged && p.Tool != protocol.ToolSpade {
		w.audit(p.ID, protocol.ActionDestroyOne, pos, protocol.DenyTool)
		return
	}
	// The reach cap does not apply to ranged destruction; the weapon
	// collaborator owns the trace there.
	if ranged {
		if !w.weapons.RangedDestroyAllowed(p.ID, pos, w.now()) {
			w.audit(p.ID, protocol.ActionDestroyOne, pos, protocol.DenyWeapon)
			return
		}
	} else if !w.withinReach(p, pos) {
		w.audit(p.ID, protocol.ActionDestroyOne, pos, protocol.DenyDistance)
		return
	}
	now := w.now()
	if !p.delayElapsed(actDestroy, now, int64(w.cfg.DestroyDelay)) {
		w.audit(p.ID, protocol.ActionDestroyOne, pos, protocol.DenyRateLimit)
		return
	}
	if !w.terrain.IsSolid(pos) {
		w.audit(p.ID, protocol.ActionDestroyOne, pos, protocol.DenyNoBlock)
		return
	}

	blk := ext.Block{X: pos.X, Y: pos.Y, Z: pos.Z, Color: w.terrain.Color(pos)}
	if w.reg.DispatchBlockDestroy(w.host, p.ID, p.Tool, &blk) == ext.ResultDeny {
		w.audit(p.ID, protocol.ActionDestroyOne, pos, protocol.DenyVetoed)
		return
	}

	p.markAction(actDestroy, now)
	vacated := w.vacate(p.ID, []terrain.Pos{pos})

	// Melee destruction replenishes the build resource up to the cap;
	// ranged destruction never does.
	if !ranged && p.Blocks < w.cfg.ResourceCap {
		p.Blocks++
	}
	w.logEdit(p.ID, protocol.ActionDestroyOne, pos, 0, vacated)
}

// applyDestroyThree is the melee three-cell column destroy: z-1, z and z+1
// around the target, in ascending z. The gamemode must permit destruction at
// the target and at both vertical neighbors, and the veto hook decides once
// on the target cell; either refusal rejects the whole action. Bedrock and
// air cells inside the span are skipped individually.
func (w *World) applyDestroyThree(p *Player, pos terrain.Pos) {
	if p.Tool != protocol.ToolSpade {
		w.audit(p.ID, protocol.ActionDestroyThree, pos, protocol.DenyTool)
		return
	}
	if !w.withinReach(p, pos) {
		w.audit(p.ID, protocol.ActionDestroyThree, pos, protocol.DenyDistance)
		return
	}
	// The target position was area-checked on entry; the neighbors get the
	// same treatment here.
	for _, z := range [2]int{pos.Z - 1, pos.Z + 1} {
		c := terrain.Pos{X: pos.X, Y: pos.Y, Z: z}
		if w.terrain.InBounds(c) && !w.gamemode.AreaPermitsEdit(c) {
			w.audit(p.ID, protocol.ActionDestroyThree, pos, protocol.DenyArea)
			return
		}
	}
	now := w.now()
	if !p.delayElapsed(actDestroyThree, now, int64(w.cfg.DestroyThreeDelay)) {
		w.audit(p.ID, protocol.ActionDestroyThree, pos, protocol.DenyRateLimit)
		return
	}

	var targets []terrain.Pos
	for z := pos.Z - 1; z <= pos.Z+1; z++ {
		c := terrain.Pos{X: pos.X, Y: pos.Y, Z: z}
		if z < 0 || z >= w.cfg.BedrockZ || !w.terrain.IsSolid(c) {
			continue
		}
		targets = append(targets, c)
	}
	if len(targets) == 0 {
		w.audit(p.ID, protocol.ActionDestroyThree, pos, protocol.DenyNoBlock)
		return
	}

	blk := ext.Block{X: pos.X, Y: pos.Y, Z: pos.Z, Color: w.terrain.Color(pos)}
	if w.reg.DispatchBlockDestroy(w.host, p.ID, p.Tool, &blk) == ext.ResultDeny {
		w.audit(p.ID, protocol.ActionDestroyThree, pos, protocol.DenyVetoed)
		return
	}

	p.markAction(actDestroyThree, now)
	vacated := w.vacate(p.ID, targets)
	// The three-cell destroy yields no resource.
	w.logEdit(p.ID, protocol.ActionDestroyThree, pos, 0, vacated)
}

// vacate removes the given cells, runs the integrity cascade, broadcasts
// every resulting air cell and returns the total vacated count. Direct cells
// carry the actor's id; cascade fallout carries the server origin id so
// clients never credit it.
func (w *World) vacate(actor uint8, cells []terrain.Pos) int {
	for _, c := range cells {
		w.terrain.SetAir(c)
		w.broadcastAir(c, actor)
	}
	fallen := w.terrain.Collapse(cells, w.cfg.ProbeRadius)
	for _, c := range fallen {
		w.broadcastAir(c, protocol.ServerOriginID)
	}
	w.collapsed.Add(uint64(len(fallen)))
	return len(cells) + len(fallen)
}

func (w *World) withinReach(p *Player, pos terrain.Pos) bool {
	dx := p.Pos[0] - (float64(pos.X) + 0.5)
	dy := p.Pos[1] - (float64(pos.Y) + 0.5)
	dz := p.Pos[2] - (float64(pos.Z) + 0.5)
	max := w.cfg.MaxEditDistance
	return dx*dx+dy*dy+dz*dz <= max*max
}

func (w *World) onObjective(pos terrain.Pos) bool {
	for _, o := range w.gamemode.ObjectivePositions() {
		if o == pos {
			return true
		}
	}
	return false
}

func (w *World) audit(actor uint8, kind string, pos terrain.Pos, reason string) {
	w.editsDenied.Add(1)
	if w.auditLogger != nil {
		_ = w.auditLogger.WriteAudit(AuditEntry{
			Tick:   w.tick.Load(),
			Actor:  actor,
			Kind:   kind,
			Pos:    [3]int{pos.X, pos.Y, pos.Z},
			Reason: reason,
		})
	}
}

func (w *World) logEdit(actor uint8, kind string, pos terrain.Pos, color uint32, vacated int) {
	w.editsAccepted.Add(1)
	if w.editLogger != nil {
		_ = w.editLogger.WriteEdit(EditLogEntry{
			Tick:    w.tick.Load(),
			Actor:   actor,
			Kind:    kind,
			Pos:     [3]int{pos.X, pos.Y, pos.Z},
			Color:   color,
			Vacated: vacated,
		})
	}
}
