package world

import (
	"testing"

	"voxelsiege.gg/internal/ext"
	"voxelsiege.gg/internal/protocol"
	"voxelsiege.gg/internal/sim/terrain"
)

func vetoExt(name string, hooks ext.Hooks) *ext.Extension {
	hooks.Init = func(*ext.Host) int { return 0 }
	return &ext.Extension{
		Info:  ext.Info{Name: name, Version: "1.0.0", APIVersion: ext.APIVersion},
		Hooks: hooks,
	}
}

func TestJoinAndLeave(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	out := make(chan []byte, 16)
	resp := make(chan JoinResponse, 1)

	w.step([]JoinRequest{{Name: "deuce", Out: out, Resp: resp}}, nil, nil)

	r := <-resp
	if !r.OK {
		t.Fatalf("join rejected")
	}
	if r.Welcome.Type != protocol.TypeWelcome || r.Welcome.ProtocolVersion != protocol.Version {
		t.Fatalf("welcome = %+v", r.Welcome)
	}
	wp := r.Welcome.WorldParams
	if wp.Width != 32 || wp.Depth != 32 || wp.Height != 64 || wp.BedrockZ != 62 {
		t.Fatalf("world params = %+v", wp)
	}

	id := r.Welcome.PlayerID
	p, ok := w.players[id]
	if !ok {
		t.Fatalf("player %d missing", id)
	}
	if p.Name != "deuce" || !p.Alive || p.Blocks != w.cfg.ResourceCap {
		t.Fatalf("player = %+v", p)
	}
	c, ok := w.clients[id]
	if !ok || !c.syncing {
		t.Fatalf("client not registered syncing")
	}

	w.step(nil, []LeaveRequest{{PlayerID: id, Reason: "test"}}, nil)
	if _, ok := w.players[id]; ok {
		t.Fatalf("player survived leave")
	}
	if _, ok := w.clients[id]; ok {
		t.Fatalf("client survived leave")
	}
}

func TestMetricsPublishedByStep(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	out := make(chan []byte, 16)
	resp := make(chan JoinResponse, 1)

	w.step([]JoinRequest{{Name: "a", Out: out, Resp: resp}}, nil, nil)
	r := <-resp

	m := w.Metrics()
	if m.Players != 1 || m.Clients != 1 {
		t.Fatalf("players=%d clients=%d, want 1/1", m.Players, m.Clients)
	}
	// Empty test terrain: the two bedrock layers only.
	if m.SolidBlocks != 32*32*2 {
		t.Fatalf("solid = %d", m.SolidBlocks)
	}

	w.step(nil, []LeaveRequest{{PlayerID: r.Welcome.PlayerID, Reason: "test"}}, nil)
	if m := w.Metrics(); m.Players != 0 || m.Clients != 0 {
		t.Fatalf("counts after leave: players=%d clients=%d", m.Players, m.Clients)
	}
}

func TestJoinAllocatesLowestFreeID(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	addPlayer(w, 0, [3]float64{1, 1, 1}, protocol.ToolSpade)
	addPlayer(w, 2, [3]float64{1, 1, 1}, protocol.ToolSpade)

	resp := make(chan JoinResponse, 1)
	w.step([]JoinRequest{{Name: "x", Resp: resp}}, nil, nil)
	if r := <-resp; r.Welcome.PlayerID != 1 {
		t.Fatalf("player id = %d, want 1", r.Welcome.PlayerID)
	}
}

func TestExtensionVetoBlocksEdit(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	p := addPlayer(w, 1, [3]float64{5.5, 5.5, 59.5}, protocol.ToolBlock)
	ch := addClient(w, 1, 16)

	denied := 0
	e := vetoExt("guard", ext.Hooks{
		OnBlockPlace: func(*ext.Host, uint8, *ext.Block) int {
			denied++
			return int(ext.ResultDeny)
		},
	})
	if err := w.reg.Register(e); err != nil {
		t.Fatalf("register: %v", err)
	}

	w.applyBlockAction(p, buildAt([3]int{5, 5, 61}, 1))
	if denied != 1 {
		t.Fatalf("hook ran %d times", denied)
	}
	if w.terrain.IsSolid(terrain.Pos{X: 5, Y: 5, Z: 61}) {
		t.Fatalf("vetoed build committed")
	}
	if ups := drainUpdates(t, ch); len(ups) != 0 {
		t.Fatalf("vetoed build broadcast %d updates", len(ups))
	}
	if p.Blocks != w.cfg.ResourceCap {
		t.Fatalf("vetoed build charged resource")
	}
}

func TestExtensionRewritesBuildColor(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	p := addPlayer(w, 1, [3]float64{5.5, 5.5, 59.5}, protocol.ToolBlock)

	e := vetoExt("painter", ext.Hooks{
		OnBlockPlace: func(_ *ext.Host, _ uint8, b *ext.Block) int {
			b.Color = 0xFF00FF00
			return int(ext.ResultAllow)
		},
	})
	if err := w.reg.Register(e); err != nil {
		t.Fatalf("register: %v", err)
	}

	w.applyBlockAction(p, buildAt([3]int{5, 5, 61}, 0xFFFF0000))
	if got := w.terrain.Color(terrain.Pos{X: 5, Y: 5, Z: 61}); got != 0xFF00FF00 {
		t.Fatalf("color = %08X, want rewritten", got)
	}
}

func TestSetColorVetoAndRewrite(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	p := addPlayer(w, 1, [3]float64{1, 1, 1}, protocol.ToolBlock)
	p.ToolColor = 0xFF000001

	e := vetoExt("colors", ext.Hooks{
		OnColorChange: func(_ *ext.Host, _ uint8, color *uint32) int {
			if *color == 0xFFBADBAD {
				return int(ext.ResultDeny)
			}
			*color |= 0xFF000000
			return int(ext.ResultAllow)
		},
	})
	if err := w.reg.Register(e); err != nil {
		t.Fatalf("register: %v", err)
	}

	w.applySetColor(p, protocol.SetColorMsg{Color: 0xFFBADBAD})
	if p.ToolColor != 0xFF000001 {
		t.Fatalf("vetoed color change applied")
	}

	w.applySetColor(p, protocol.SetColorMsg{Color: 0x00123456})
	if p.ToolColor != 0xFF123456 {
		t.Fatalf("color = %08X, want rewritten", p.ToolColor)
	}
}

func TestHitVeto(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	shooter := addPlayer(w, 1, [3]float64{1, 1, 1}, protocol.ToolGun)
	victim := addPlayer(w, 2, [3]float64{2, 2, 2}, protocol.ToolSpade)

	e := vetoExt("peace", ext.Hooks{
		OnPlayerHit: func(*ext.Host, uint8, uint8, uint8, uint8) int {
			return int(ext.ResultDeny)
		},
	})
	if err := w.reg.Register(e); err != nil {
		t.Fatalf("register: %v", err)
	}

	w.applyHit(shooter, protocol.HitMsg{Victim: 2, HitType: 0, Weapon: 0})
	if victim.HP != 100 {
		t.Fatalf("vetoed hit applied: hp=%d", victim.HP)
	}

	w.reg.UnloadAll(w.host)
	w.applyHit(shooter, protocol.HitMsg{Victim: 2, HitType: 0, Weapon: 0})
	if victim.HP != 51 {
		t.Fatalf("hp = %d, want 51", victim.HP)
	}

	w.applyHit(shooter, protocol.HitMsg{Victim: 2, HitType: 1, Weapon: 0})
	if victim.HP != 0 || victim.Alive {
		t.Fatalf("headshot should finish: hp=%d alive=%v", victim.HP, victim.Alive)
	}
}

func TestCommandDispatch(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	p := addPlayer(w, 1, [3]float64{1, 1, 1}, protocol.ToolSpade)

	var gotActor uint8
	var gotArgs string
	if rc := w.host.RegisterCommand("fog", func(actor uint8, args string) {
		gotActor = actor
		gotArgs = args
	}); rc != ext.ResultOK {
		t.Fatalf("register command: %v", rc)
	}
	if rc := w.host.RegisterCommand("fog", func(uint8, string) {}); rc != ext.ResultAlreadyRegistered {
		t.Fatalf("duplicate register = %v", rc)
	}
	if rc := w.host.RegisterCommand("", func(uint8, string) {}); rc != ext.ResultInvalidName {
		t.Fatalf("empty name = %v", rc)
	}

	w.applyCmd(p, protocol.CmdMsg{Name: "fog", Args: "on dense"})
	if gotActor != 1 || gotArgs != "on dense" {
		t.Fatalf("handler got actor=%d args=%q", gotActor, gotArgs)
	}
}

func TestCommandFallsThroughToHooks(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	p := addPlayer(w, 1, [3]float64{1, 1, 1}, protocol.ToolSpade)

	var seen string
	e := vetoExt("cmds", ext.Hooks{
		OnCommand: func(_ *ext.Host, _ uint8, command string) int {
			seen = command
			return int(ext.ResultAllow)
		},
	})
	if err := w.reg.Register(e); err != nil {
		t.Fatalf("register: %v", err)
	}

	w.applyCmd(p, protocol.CmdMsg{Name: "airstrike", Args: "5 5"})
	if seen != "airstrike 5 5" {
		t.Fatalf("hook saw %q", seen)
	}
}

func TestInitOnlyCapabilitiesGate(t *testing.T) {
	w, _ := newTestWorld(t, nil)

	if rc := w.host.InitSetBlock(3, 3, 50, 0xFF010203); rc != ext.ResultOK {
		t.Fatalf("init-phase InitSetBlock = %v", rc)
	}
	if !w.terrain.IsSolid(terrain.Pos{X: 3, Y: 3, Z: 50}) {
		t.Fatalf("init write missing")
	}
	if rc := w.host.InitSetObjective(0, 3, 3, 49); rc != ext.ResultOK {
		t.Fatalf("init-phase InitSetObjective = %v", rc)
	}
	if rc := w.host.InitSetObjective(5, 3, 3, 49); rc != ext.ResultInvalidTeam {
		t.Fatalf("bad team = %v", rc)
	}

	w.CompleteInit()
	if rc := w.host.InitSetBlock(4, 4, 50, 0xFF010203); rc != ext.ResultDeny {
		t.Fatalf("post-init InitSetBlock = %v", rc)
	}
	if rc := w.host.InitSetObjective(0, 4, 4, 50); rc != ext.ResultDeny {
		t.Fatalf("post-init InitSetObjective = %v", rc)
	}
}

func TestHostTerrainCapabilities(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	ch := addClient(w, 9, 16)
	addPlayer(w, 9, [3]float64{1, 1, 1}, protocol.ToolSpade)

	if rc := w.host.SetBlock(6, 6, 61, 0xFF0A0B0C); rc != ext.ResultOK {
		t.Fatalf("SetBlock = %v", rc)
	}
	color, solid := w.host.GetBlock(6, 6, 61)
	if !solid || color != 0xFF0A0B0C {
		t.Fatalf("GetBlock = %08X,%v", color, solid)
	}
	if z := w.host.FindTopBlock(6, 6); z != 61 {
		t.Fatalf("FindTopBlock = %d", z)
	}
	if rc := w.host.SetBlock(6, 6, 62, 1); rc != ext.ResultOutOfRange {
		t.Fatalf("bedrock SetBlock = %v", rc)
	}

	if rc := w.host.RemoveBlock(6, 6, 61); rc != ext.ResultOK {
		t.Fatalf("RemoveBlock = %v", rc)
	}
	if _, solid := w.host.GetBlock(6, 6, 61); solid {
		t.Fatalf("cell survived RemoveBlock")
	}

	ups := drainUpdates(t, ch)
	if len(ups) != 2 {
		t.Fatalf("updates = %d, want 2", len(ups))
	}
	for _, u := range ups {
		if u.Origin != protocol.ServerOriginID {
			t.Fatalf("host edit origin = %d", u.Origin)
		}
	}
}

func TestDeadPlayersCannotEdit(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	p := addPlayer(w, 1, [3]float64{5.5, 5.5, 59.5}, protocol.ToolBlock)
	p.Alive = false
	p.HP = 0

	w.applyBlockAction(p, buildAt([3]int{5, 5, 61}, 1))
	if w.terrain.IsSolid(terrain.Pos{X: 5, Y: 5, Z: 61}) {
		t.Fatalf("dead player edit committed")
	}
}
