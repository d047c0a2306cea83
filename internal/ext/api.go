// Package ext is the capability boundary for externally compiled,
// dynamically loaded extension modules. The symbol contract mirrors the
// shared-library shape: a descriptor at a well-known export name, a required
// init entry point, an optional shutdown, and up to eleven optional event
// hooks resolved independently (absence is not an error).
package ext

// APIVersion is the host ABI version. Registration requires an exact match;
// this is a hard compatibility gate, not a negotiation.
const APIVersion uint32 = 1

// Well-known export names resolved from a loaded module.
const (
	SymbolInfo     = "VoxelsiegeExtension"
	SymbolInit     = "ExtensionInit"
	SymbolShutdown = "ExtensionShutdown"
)

// Optional event hook export names.
const (
	SymbolOnServerInit       = "OnServerInit"
	SymbolOnServerShutdown   = "OnServerShutdown"
	SymbolOnBlockDestroy     = "OnBlockDestroy"
	SymbolOnBlockPlace       = "OnBlockPlace"
	SymbolOnCommand          = "OnCommand"
	SymbolOnPlayerConnect    = "OnPlayerConnect"
	SymbolOnPlayerDisconnect = "OnPlayerDisconnect"
	SymbolOnGrenadeExplode   = "OnGrenadeExplode"
	SymbolOnTick             = "OnTick"
	SymbolOnPlayerHit        = "OnPlayerHit"
	SymbolOnColorChange      = "OnColorChange"
)

// Result is the closed set of codes crossing the module boundary. Nothing in
// the host throws or panics across it.
type Result int

const (
	ResultOK    Result = 0
	ResultAllow Result = 1
	ResultDeny  Result = 2

	ResultNullArgument      Result = -1
	ResultOutOfRange        Result = -2
	ResultInvalidTeam       Result = -3
	ResultInvalidHP         Result = -4
	ResultAlreadyRegistered Result = -5
	ResultInvalidName       Result = -6
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultAllow:
		return "allow"
	case ResultDeny:
		return "deny"
	case ResultNullArgument:
		return "null argument"
	case ResultOutOfRange:
		return "out of range"
	case ResultInvalidTeam:
		return "invalid team"
	case ResultInvalidHP:
		return "invalid hp"
	case ResultAlreadyRegistered:
		return "already registered"
	case ResultInvalidName:
		return "invalid name"
	}
	return "unknown result code"
}

// Info is the fixed-shape descriptor every module must export under
// SymbolInfo.
type Info struct {
	Name        string
	Version     string
	Author      string
	Description string
	APIVersion  uint32
}

// Block is a mutable event payload. Veto hooks receive a pointer and may
// rewrite Color before the edit commits.
type Block struct {
	X, Y, Z int
	Color   uint32
}

// CommandFunc handles an extension-registered command.
type CommandFunc func(actor uint8, args string)

// Hook signatures. Every hook receives the host capability table per call;
// modules must not cache it.
type (
	InitFunc     func(h *Host) int
	ShutdownFunc func(h *Host)

	ServerInitFunc       func(h *Host)
	ServerShutdownFunc   func(h *Host)
	BlockDestroyFunc     func(h *Host, actor uint8, tool string, b *Block) int
	BlockPlaceFunc       func(h *Host, actor uint8, b *Block) int
	CommandHookFunc      func(h *Host, actor uint8, command string) int
	PlayerConnectFunc    func(h *Host, actor uint8)
	PlayerDisconnectFunc func(h *Host, actor uint8, reason string)
	GrenadeExplodeFunc   func(h *Host, actor uint8, pos [3]float64)
	TickFunc             func(h *Host)
	PlayerHitFunc        func(h *Host, shooter, victim uint8, hitType, weapon uint8) int
	ColorChangeFunc      func(h *Host, actor uint8, color *uint32) int
)

// Hooks is the resolved callback table of one module. Nil entries are
// skipped at dispatch.
type Hooks struct {
	Init     InitFunc
	Shutdown ShutdownFunc

	OnServerInit       ServerInitFunc
	OnServerShutdown   ServerShutdownFunc
	OnBlockDestroy     BlockDestroyFunc
	OnBlockPlace       BlockPlaceFunc
	OnCommand          CommandHookFunc
	OnPlayerConnect    PlayerConnectFunc
	OnPlayerDisconnect PlayerDisconnectFunc
	OnGrenadeExplode   GrenadeExplodeFunc
	OnTick             TickFunc
	OnPlayerHit        PlayerHitFunc
	OnColorChange      ColorChangeFunc
}
