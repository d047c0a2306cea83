package ext

// Host is the capability table handed to every hook invocation. It is a
// struct of function values wired by the world at startup; the function
// shape keeps the boundary ABI-stable for externally compiled modules.
//
// Every mutating capability returns a Result, never an error and never a
// panic. Capabilities are invoked on the world loop goroutine only (hooks
// run inline with dispatch), so no locking is needed behind them.
type Host struct {
	// Player queries. Missing players yield zero values.
	PlayerName     func(actor uint8) string
	PlayerTool     func(actor uint8) string
	PlayerBlocks   func(actor uint8) int
	PlayerColor    func(actor uint8) uint32
	PlayerHP       func(actor uint8) int
	PlayerPosition func(actor uint8) [3]float64

	// Player mutation.
	SetPlayerColor    func(actor uint8, color uint32) Result
	SetPlayerHP       func(actor uint8, hp int) Result
	SetPlayerPosition func(actor uint8, pos [3]float64) Result
	RestockPlayer     func(actor uint8) Result
	NotifyPlayer      func(actor uint8, message string) Result

	// Terrain. SetBlock/RemoveBlock commit immediately and broadcast with
	// the reserved server origin id; they bypass validation but never touch
	// bedrock.
	GetBlock     func(x, y, z int) (color uint32, solid bool)
	ValidPos     func(x, y, z int) bool
	FindTopBlock func(x, y int) int // -1 when outside the volume
	SetBlock     func(x, y, z int, color uint32) Result
	RemoveBlock  func(x, y, z int) Result

	// Init-only capabilities, usable during module init and the server-init
	// event: direct terrain writes with no broadcast (custom map building)
	// and objective placement. Deny after init completes.
	InitSetBlock     func(x, y, z int, color uint32) Result
	InitSetObjective func(team uint8, x, y, z int) Result

	// Server.
	Broadcast       func(message string) Result
	RegisterCommand func(name string, handler CommandFunc) Result
}
