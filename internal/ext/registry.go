package ext

import "fmt"

// Extension is one loaded module in the dispatch chain.
type Extension struct {
	Info  Info
	Hooks Hooks
	Path  string

	next *Extension
}

// Registry is the ordered dispatch chain: a singly linked list with the most
// recently loaded module first, no reordering after load. It carries no
// ambient global state; callers pass it (and the host table) explicitly.
type Registry struct {
	head  *Extension
	count int
}

func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) Len() int { return r.count }

// Register gates on an exact ABI version match and a required init hook,
// then prepends the module to the chain.
func (r *Registry) Register(e *Extension) error {
	if e == nil {
		return fmt.Errorf("nil extension")
	}
	if e.Info.APIVersion != APIVersion {
		return fmt.Errorf("extension %s: incompatible ABI version %d (host %d)", e.Info.Name, e.Info.APIVersion, APIVersion)
	}
	if e.Hooks.Init == nil {
		return fmt.Errorf("extension %s: missing %s", e.Info.Name, SymbolInit)
	}
	if e.Info.Name == "" {
		return fmt.Errorf("extension at %s: empty name", e.Path)
	}
	e.next = r.head
	r.head = e
	r.count++
	return nil
}

// Unload calls the module's shutdown hook (if present) and removes it from
// the chain. The mapped code itself cannot be unmapped by the Go runtime;
// the module simply stops receiving dispatch.
func (r *Registry) Unload(h *Host, e *Extension) {
	if e == nil {
		return
	}
	for pp := &r.head; *pp != nil; pp = &(*pp).next {
		if *pp == e {
			*pp = e.next
			r.count--
			break
		}
	}
	if e.Hooks.Shutdown != nil {
		e.Hooks.Shutdown(h)
	}
}

// UnloadAll unloads in chain order (most recently loaded first).
func (r *Registry) UnloadAll(h *Host) {
	for r.head != nil {
		r.Unload(h, r.head)
	}
}

// Veto dispatch: the first module that returns Deny short-circuits the
// chain. Modules without the hook are skipped. Payloads are mutable.

func (r *Registry) DispatchBlockPlace(h *Host, actor uint8, b *Block) Result {
	for e := r.head; e != nil; e = e.next {
		if e.Hooks.OnBlockPlace == nil {
			continue
		}
		if Result(e.Hooks.OnBlockPlace(h, actor, b)) == ResultDeny {
			return ResultDeny
		}
	}
	return ResultAllow
}

func (r *Registry) DispatchBlockDestroy(h *Host, actor uint8, tool string, b *Block) Result {
	for e := r.head; e != nil; e = e.next {
		if e.Hooks.OnBlockDestroy == nil {
			continue
		}
		if Result(e.Hooks.OnBlockDestroy(h, actor, tool, b)) == ResultDeny {
			return ResultDeny
		}
	}
	return ResultAllow
}

func (r *Registry) DispatchColorChange(h *Host, actor uint8, color *uint32) Result {
	for e := r.head; e != nil; e = e.next {
		if e.Hooks.OnColorChange == nil {
			continue
		}
		if Result(e.Hooks.OnColorChange(h, actor, color)) == ResultDeny {
			return ResultDeny
		}
	}
	return ResultAllow
}

func (r *Registry) DispatchPlayerHit(h *Host, shooter, victim uint8, hitType, weapon uint8) Result {
	for e := r.head; e != nil; e = e.next {
		if e.Hooks.OnPlayerHit == nil {
			continue
		}
		if Result(e.Hooks.OnPlayerHit(h, shooter, victim, hitType, weapon)) == ResultDeny {
			return ResultDeny
		}
	}
	return ResultAllow
}

// DispatchCommand returns Allow as soon as any module reports the command
// handled; Deny means no module claimed it.
func (r *Registry) DispatchCommand(h *Host, actor uint8, command string) Result {
	for e := r.head; e != nil; e = e.next {
		if e.Hooks.OnCommand == nil {
			continue
		}
		if Result(e.Hooks.OnCommand(h, actor, command)) == ResultAllow {
			return ResultAllow
		}
	}
	return ResultDeny
}

// Notification dispatch: every module's hook runs unconditionally in chain
// order; return values do not exist.

func (r *Registry) DispatchServerInit(h *Host) {
	for e := r.head; e != nil; e = e.next {
		if e.Hooks.OnServerInit != nil {
			e.Hooks.OnServerInit(h)
		}
	}
}

func (r *Registry) DispatchServerShutdown(h *Host) {
	for e := r.head; e != nil; e = e.next {
		if e.Hooks.OnServerShutdown != nil {
			e.Hooks.OnServerShutdown(h)
		}
	}
}

func (r *Registry) DispatchTick(h *Host) {
	for e := r.head; e != nil; e = e.next {
		if e.Hooks.OnTick != nil {
			e.Hooks.OnTick(h)
		}
	}
}

func (r *Registry) DispatchPlayerConnect(h *Host, actor uint8) {
	for e := r.head; e != nil; e = e.next {
		if e.Hooks.OnPlayerConnect != nil {
			e.Hooks.OnPlayerConnect(h, actor)
		}
	}
}

func (r *Registry) DispatchPlayerDisconnect(h *Host, actor uint8, reason string) {
	for e := r.head; e != nil; e = e.next {
		if e.Hooks.OnPlayerDisconnect != nil {
			e.Hooks.OnPlayerDisconnect(h, actor, reason)
		}
	}
}

func (r *Registry) DispatchGrenadeExplode(h *Host, actor uint8, pos [3]float64) {
	for e := r.head; e != nil; e = e.next {
		if e.Hooks.OnGrenadeExplode != nil {
			e.Hooks.OnGrenadeExplode(h, actor, pos)
		}
	}
}
