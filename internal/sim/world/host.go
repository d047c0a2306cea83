package world

import (
	"voxelsiege.gg/internal/ext"
	"voxelsiege.gg/internal/protocol"
	"voxelsiege.gg/internal/sim/terrain"
)

// buildHost wires the extension capability table to this world. Every closure
// runs on the loop goroutine (hooks dispatch inline), so plain map and
// terrain access is safe. Capabilities validate their arguments and return a
// result code; they never panic into a module.
func (w *World) buildHost() *ext.Host {
	h := &ext.Host{}

	h.PlayerName = func(actor uint8) string {
		if p, ok := w.players[actor]; ok {
			return p.Name
		}
		return ""
	}
	h.PlayerTool = func(actor uint8) string {
		if p, ok := w.players[actor]; ok {
			return p.Tool
		}
		return ""
	}
	h.PlayerBlocks = func(actor uint8) int {
		if p, ok := w.players[actor]; ok {
			return p.Blocks
		}
		return 0
	}
	h.PlayerColor = func(actor uint8) uint32 {
		if p, ok := w.players[actor]; ok {
			return p.ToolColor
		}
		return 0
	}
	h.PlayerHP = func(actor uint8) int {
		if p, ok := w.players[actor]; ok {
			return p.HP
		}
		return 0
	}
	h.PlayerPosition = func(actor uint8) [3]float64 {
		if p, ok := w.players[actor]; ok {
			return p.Pos
		}
		return [3]float64{}
	}

	h.SetPlayerColor = func(actor uint8, color uint32) ext.Result {
		p, ok := w.players[actor]
		if !ok {
			return ext.ResultNullArgument
		}
		p.ToolColor = color
		return ext.ResultOK
	}
	h.SetPlayerHP = func(actor uint8, hp int) ext.Result {
		p, ok := w.players[actor]
		if !ok {
			return ext.ResultNullArgument
		}
		if hp < 0 || hp > 100 {
			return ext.ResultInvalidHP
		}
		p.HP = hp
		p.Alive = hp > 0
		return ext.ResultOK
	}
	h.SetPlayerPosition = func(actor uint8, pos [3]float64) ext.Result {
		p, ok := w.players[actor]
		if !ok {
			return ext.ResultNullArgument
		}
		if pos[0] < 0 || pos[0] >= float64(w.cfg.Width) ||
			pos[1] < 0 || pos[1] >= float64(w.cfg.Depth) ||
			pos[2] < 0 || pos[2] >= float64(w.cfg.Height) {
			return ext.ResultOutOfRange
		}
		p.Pos = pos
		return ext.ResultOK
	}
	h.RestockPlayer = func(actor uint8) ext.Result {
		p, ok := w.players[actor]
		if !ok {
			return ext.ResultNullArgument
		}
		p.Blocks = w.cfg.ResourceCap
		p.Grenades = 3
		return ext.ResultOK
	}
	h.NotifyPlayer = func(actor uint8, message string) ext.Result {
		if !w.sendNotice(actor, message) {
			return ext.ResultNullArgument
		}
		return ext.ResultOK
	}

	h.GetBlock = func(x, y, z int) (uint32, bool) {
		p := terrain.Pos{X: x, Y: y, Z: z}
		if !w.terrain.InBounds(p) {
			return 0, false
		}
		if !w.terrain.IsSolid(p) {
			return 0, false
		}
		return w.terrain.Color(p), true
	}
	h.ValidPos = func(x, y, z int) bool {
		return w.terrain.InBounds(terrain.Pos{X: x, Y: y, Z: z})
	}
	h.FindTopBlock = func(x, y int) int {
		z, ok := w.terrain.FindTopSolid(x, y)
		if !ok {
			return -1
		}
		return z
	}

	h.SetBlock = func(x, y, z int, color uint32) ext.Result {
		p := terrain.Pos{X: x, Y: y, Z: z}
		if !w.terrain.InBounds(p) || p.Z >= w.cfg.BedrockZ {
			return ext.ResultOutOfRange
		}
		w.terrain.SetSolid(p, color)
		w.broadcastSet(p, color, protocol.ServerOriginID)
		return ext.ResultOK
	}
	h.RemoveBlock = func(x, y, z int) ext.Result {
		p := terrain.Pos{X: x, Y: y, Z: z}
		if !w.terrain.InBounds(p) || p.Z >= w.cfg.BedrockZ {
			return ext.ResultOutOfRange
		}
		if !w.terrain.IsSolid(p) {
			return ext.ResultOK
		}
		w.vacate(protocol.ServerOriginID, []terrain.Pos{p})
		return ext.ResultOK
	}

	h.InitSetBlock = func(x, y, z int, color uint32) ext.Result {
		if !w.initPhase {
			return ext.ResultDeny
		}
		p := terrain.Pos{X: x, Y: y, Z: z}
		if !w.terrain.InBounds(p) || p.Z >= w.cfg.BedrockZ {
			return ext.ResultOutOfRange
		}
		w.terrain.SetSolid(p, color)
		return ext.ResultOK
	}
	h.InitSetObjective = func(team uint8, x, y, z int) ext.Result {
		if !w.initPhase {
			return ext.ResultDeny
		}
		placer, ok := w.gamemode.(ObjectivePlacer)
		if !ok {
			return ext.ResultDeny
		}
		p := terrain.Pos{X: x, Y: y, Z: z}
		if !w.terrain.InBounds(p) {
			return ext.ResultOutOfRange
		}
		if !placer.SetObjective(team, p) {
			return ext.ResultInvalidTeam
		}
		return ext.ResultOK
	}

	h.Broadcast = func(message string) ext.Result {
		w.broadcastNotice(message)
		return ext.ResultOK
	}
	h.RegisterCommand = func(name string, handler ext.CommandFunc) ext.Result {
		return w.registerCommand(name, handler)
	}

	return h
}
