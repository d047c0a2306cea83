package ext

import "testing"

func testExt(name string) *Extension {
	return &Extension{
		Info: Info{
			Name:       name,
			Version:    "1.0.0",
			Author:     "test",
			APIVersion: APIVersion,
		},
		Hooks: Hooks{Init: func(*Host) int { return 0 }},
	}
}

func TestRegisterGates(t *testing.T) {
	r := NewRegistry()

	bad := testExt("old-abi")
	bad.Info.APIVersion = APIVersion + 1
	if err := r.Register(bad); err == nil {
		t.Fatalf("ABI mismatch must be rejected")
	}

	noInit := testExt("no-init")
	noInit.Hooks.Init = nil
	if err := r.Register(noInit); err == nil {
		t.Fatalf("missing init must be rejected")
	}

	unnamed := testExt("")
	if err := r.Register(unnamed); err == nil {
		t.Fatalf("empty name must be rejected")
	}

	if err := r.Register(testExt("good")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1", r.Len())
	}
}

func TestDispatchOrderMostRecentFirst(t *testing.T) {
	r := NewRegistry()
	h := &Host{}
	var order []string

	a := testExt("a")
	a.Hooks.OnBlockPlace = func(*Host, uint8, *Block) int {
		order = append(order, "a")
		return int(ResultAllow)
	}
	b := testExt("b")
	b.Hooks.OnBlockPlace = func(*Host, uint8, *Block) int {
		order = append(order, "b")
		return int(ResultAllow)
	}
	if err := r.Register(a); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := r.Register(b); err != nil {
		t.Fatalf("register b: %v", err)
	}

	if got := r.DispatchBlockPlace(h, 1, &Block{}); got != ResultAllow {
		t.Fatalf("dispatch = %v, want allow", got)
	}
	if len(order) != 2 || order[0] != "b" || order[1] != "a" {
		t.Fatalf("order = %v, want [b a]", order)
	}
}

func TestDenyShortCircuits(t *testing.T) {
	r := NewRegistry()
	h := &Host{}
	earlierRan := false

	earlier := testExt("earlier")
	earlier.Hooks.OnBlockDestroy = func(*Host, uint8, string, *Block) int {
		earlierRan = true
		return int(ResultAllow)
	}
	denier := testExt("denier")
	denier.Hooks.OnBlockDestroy = func(*Host, uint8, string, *Block) int {
		return int(ResultDeny)
	}
	if err := r.Register(earlier); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(denier); err != nil {
		t.Fatalf("register: %v", err)
	}

	if got := r.DispatchBlockDestroy(h, 1, "SPADE", &Block{}); got != ResultDeny {
		t.Fatalf("dispatch = %v, want deny", got)
	}
	if earlierRan {
		t.Fatalf("chain must short-circuit at the first deny")
	}
}

func TestColorChangeRewrite(t *testing.T) {
	r := NewRegistry()
	h := &Host{}

	rewriter := testExt("rewriter")
	rewriter.Hooks.OnColorChange = func(_ *Host, _ uint8, color *uint32) int {
		*color = 0xFF123456
		return int(ResultAllow)
	}
	if err := r.Register(rewriter); err != nil {
		t.Fatalf("register: %v", err)
	}

	color := uint32(0xFFFFFFFF)
	if got := r.DispatchColorChange(h, 1, &color); got != ResultAllow {
		t.Fatalf("dispatch = %v, want allow", got)
	}
	if color != 0xFF123456 {
		t.Fatalf("color = %08X, want FF123456", color)
	}
}

func TestCommandClaim(t *testing.T) {
	r := NewRegistry()
	h := &Host{}

	handler := testExt("handler")
	handler.Hooks.OnCommand = func(_ *Host, _ uint8, command string) int {
		if command == "fog on" {
			return int(ResultAllow)
		}
		return int(ResultDeny)
	}
	if err := r.Register(handler); err != nil {
		t.Fatalf("register: %v", err)
	}

	if got := r.DispatchCommand(h, 1, "fog on"); got != ResultAllow {
		t.Fatalf("claimed command = %v, want allow", got)
	}
	if got := r.DispatchCommand(h, 1, "nosuch"); got != ResultDeny {
		t.Fatalf("unclaimed command = %v, want deny", got)
	}
}

func TestUnloadCallsShutdownAndStopsDispatch(t *testing.T) {
	r := NewRegistry()
	h := &Host{}
	shutdowns := 0
	ticks := 0

	e := testExt("e")
	e.Hooks.Shutdown = func(*Host) { shutdowns++ }
	e.Hooks.OnTick = func(*Host) { ticks++ }
	if err := r.Register(e); err != nil {
		t.Fatalf("register: %v", err)
	}

	r.DispatchTick(h)
	r.Unload(h, e)
	r.DispatchTick(h)

	if shutdowns != 1 {
		t.Fatalf("shutdowns = %d, want 1", shutdowns)
	}
	if ticks != 1 {
		t.Fatalf("ticks = %d, want 1 (no dispatch after unload)", ticks)
	}
	if r.Len() != 0 {
		t.Fatalf("len = %d, want 0", r.Len())
	}
}

func TestUnloadAllOrder(t *testing.T) {
	r := NewRegistry()
	h := &Host{}
	var order []string

	for _, name := range []string{"first", "second", "third"} {
		name := name
		e := testExt(name)
		e.Hooks.Shutdown = func(*Host) { order = append(order, name) }
		if err := r.Register(e); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	r.UnloadAll(h)
	if len(order) != 3 || order[0] != "third" || order[1] != "second" || order[2] != "first" {
		t.Fatalf("shutdown order = %v, want most recently loaded first", order)
	}
}
