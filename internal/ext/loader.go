package ext

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"plugin"
	"sort"
	"strings"
)

// Loading goes through the stdlib plugin package: modules are externally
// compiled shared objects (go build -buildmode=plugin), resolved symbol by
// symbol like the dlopen/dlsym boundary they replace.

// LoadDir scans dir for shared objects and loads each independently. A
// module that fails to load is logged and skipped; startup never aborts.
// Files load in name order, so the chain (most recently loaded first) ends
// up in reverse-alphabetical dispatch order.
func LoadDir(dir string, r *Registry, h *Host, logger *log.Logger) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		logger.Printf("extensions: no directory %s: %v", dir, err)
		return
	}
	var paths []string
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".so") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	for _, p := range paths {
		e, err := Load(p, r, h)
		if err != nil {
			logger.Printf("extensions: %v", err)
			continue
		}
		logger.Printf("extensions: loaded %s v%s by %s (%s)", e.Info.Name, e.Info.Version, e.Info.Author, e.Info.Description)
	}
}

// Load opens one module, resolves its descriptor and hooks, runs its init
// entry point, and registers it. Any failure leaves the registry untouched.
func Load(path string, r *Registry, h *Host) (*Extension, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	sym, err := p.Lookup(SymbolInfo)
	if err != nil {
		return nil, fmt.Errorf("load %s: missing %s export", path, SymbolInfo)
	}
	info, ok := sym.(*Info)
	if !ok {
		return nil, fmt.Errorf("load %s: %s has wrong type %T", path, SymbolInfo, sym)
	}
	if info.APIVersion != APIVersion {
		return nil, fmt.Errorf("load %s: incompatible ABI version %d (host %d)", path, info.APIVersion, APIVersion)
	}

	e := &Extension{Info: *info, Path: path}
	initSym, err := p.Lookup(SymbolInit)
	if err != nil {
		return nil, fmt.Errorf("load %s: missing %s export", path, SymbolInit)
	}
	e.Hooks.Init, ok = initSym.(func(*Host) int)
	if !ok {
		return nil, fmt.Errorf("load %s: %s has wrong type %T", path, SymbolInit, initSym)
	}
	resolveHooks(p, &e.Hooks)

	if rc := e.Hooks.Init(h); rc != 0 {
		return nil, fmt.Errorf("load %s: init returned %d", path, rc)
	}
	if err := r.Register(e); err != nil {
		return nil, err
	}
	return e, nil
}

// resolveHooks fills in every optional hook it can find. Missing symbols and
// wrongly typed symbols both leave the hook nil; absence is not an error.
func resolveHooks(p *plugin.Plugin, hk *Hooks) {
	lookup := func(name string) plugin.Symbol {
		s, err := p.Lookup(name)
		if err != nil {
			return nil
		}
		return s
	}

	if f, ok := lookup(SymbolShutdown).(func(*Host)); ok {
		hk.Shutdown = f
	}
	if f, ok := lookup(SymbolOnServerInit).(func(*Host)); ok {
		hk.OnServerInit = f
	}
	if f, ok := lookup(SymbolOnServerShutdown).(func(*Host)); ok {
		hk.OnServerShutdown = f
	}
	if f, ok := lookup(SymbolOnBlockDestroy).(func(*Host, uint8, string, *Block) int); ok {
		hk.OnBlockDestroy = f
	}
	if f, ok := lookup(SymbolOnBlockPlace).(func(*Host, uint8, *Block) int); ok {
		hk.OnBlockPlace = f
	}
	if f, ok := lookup(SymbolOnCommand).(func(*Host, uint8, string) int); ok {
		hk.OnCommand = f
	}
	if f, ok := lookup(SymbolOnPlayerConnect).(func(*Host, uint8)); ok {
		hk.OnPlayerConnect = f
	}
	if f, ok := lookup(SymbolOnPlayerDisconnect).(func(*Host, uint8, string)); ok {
		hk.OnPlayerDisconnect = f
	}
	if f, ok := lookup(SymbolOnGrenadeExplode).(func(*Host, uint8, [3]float64)); ok {
		hk.OnGrenadeExplode = f
	}
	if f, ok := lookup(SymbolOnTick).(func(*Host)); ok {
		hk.OnTick = f
	}
	if f, ok := lookup(SymbolOnPlayerHit).(func(*Host, uint8, uint8, uint8, uint8) int); ok {
		hk.OnPlayerHit = f
	}
	if f, ok := lookup(SymbolOnColorChange).(func(*Host, uint8, *uint32) int); ok {
		hk.OnColorChange = f
	}
}
