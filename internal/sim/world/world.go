package world

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelsiege.gg/internal/ext"
	"voxelsiege.gg/internal/protocol"
	"voxelsiege.gg/internal/sim/terrain"
)

// maxPlayers leaves protocol.ServerOriginID (255) and one spare id reserved.
const maxPlayers = 254

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	OK      bool
	Welcome protocol.WelcomeMsg
}

// Envelope carries one decoded client message into the world loop.
type Envelope struct {
	PlayerID uint8
	Msg      any
}

type LeaveRequest struct {
	PlayerID uint8
	Reason   string
}

// World owns the terrain, the sessions and the extension chain for one
// server process. It is a single-threaded authoritative simulation: all
// state is accessed only from the loop goroutine, so one edit is fully
// committed, cascade included, before the next begins.
type World struct {
	cfg     WorldConfig
	terrain *terrain.Terrain

	players map[uint8]*Player
	clients map[uint8]*clientState

	gamemode GameMode
	weapons  WeaponValidator

	reg       *ext.Registry
	host      *ext.Host
	commands  map[string]ext.CommandFunc
	initPhase bool

	tick  atomic.Uint64
	start time.Time
	now   func() int64 // monotonic nanos; swappable in tests

	inbox chan Envelope
	join  chan JoinRequest
	leave chan LeaveRequest
	stop  chan struct{}

	zenc *zstd.Encoder

	editLogger  EditLogger
	auditLogger AuditLogger

	editsAccepted atomic.Uint64
	editsDenied   atomic.Uint64
	collapsed     atomic.Uint64
	stepUS        atomic.Uint64

	// Published by the loop at the end of each step; the maps themselves are
	// loop-owned and never read from outside.
	playerCount atomic.Int64
	clientCount atomic.Int64
}

type EditLogger interface {
	WriteEdit(entry EditLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// EditLogEntry records one committed edit.
type EditLogEntry struct {
	Tick    uint64 `json:"tick"`
	Actor   uint8  `json:"actor"`
	Kind    string `json:"kind"`
	Pos     [3]int `json:"pos"`
	Color   uint32 `json:"color,omitempty"`
	Vacated int    `json:"vacated,omitempty"` // direct + cascaded air cells
}

// AuditEntry records one silent rejection with its (never-sent) reason.
type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Actor  uint8  `json:"actor"`
	Kind   string `json:"kind"`
	Pos    [3]int `json:"pos"`
	Reason string `json:"reason"`
}

func New(cfg WorldConfig, gm GameMode, wv WeaponValidator) (*World, error) {
	cfg.applyDefaults()
	if gm == nil {
		gm = NewOpenArea()
	}
	if wv == nil {
		wv = AllowAllWeapons{}
	}
	zenc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}

	t := terrain.New(cfg.Width, cfg.Depth, cfg.Height, cfg.BedrockZ)
	terrain.Generate(t, cfg.Seed)

	w := &World{
		cfg:       cfg,
		terrain:   t,
		players:   map[uint8]*Player{},
		clients:   map[uint8]*clientState{},
		gamemode:  gm,
		weapons:   wv,
		reg:       ext.NewRegistry(),
		commands:  map[string]ext.CommandFunc{},
		initPhase: true,
		start:     time.Now(),
		inbox:     make(chan Envelope, 1024),
		join:      make(chan JoinRequest, 64),
		leave:     make(chan LeaveRequest, 64),
		stop:      make(chan struct{}),
		zenc:      zenc,
	}
	w.now = func() int64 { return int64(time.Since(w.start)) }
	w.host = w.buildHost()
	return w, nil
}

func (w *World) SetEditLogger(l EditLogger)   { w.editLogger = l }
func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }

func (w *World) Registry() *ext.Registry { return w.reg }
func (w *World) Host() *ext.Host         { return w.host }
func (w *World) Terrain() *terrain.Terrain {
	return w.terrain
}

// UseTerrain swaps in a pre-built terrain (a loaded map snapshot). Only valid
// before Run starts; the dimensions must match the configured volume.
func (w *World) UseTerrain(t *terrain.Terrain) error {
	if !w.initPhase {
		return fmt.Errorf("terrain swap after init")
	}
	if t.Width != w.cfg.Width || t.Depth != w.cfg.Depth || t.Height != w.cfg.Height || t.BedrockZ != w.cfg.BedrockZ {
		return fmt.Errorf("map dimensions %dx%dx%d/%d do not match world %dx%dx%d/%d",
			t.Width, t.Depth, t.Height, t.BedrockZ, w.cfg.Width, w.cfg.Depth, w.cfg.Height, w.cfg.BedrockZ)
	}
	w.terrain = t
	return nil
}

// CompleteInit dispatches the server-init event and closes the init-only
// capability window. Call after extension loading, before Run.
func (w *World) CompleteInit() {
	w.reg.DispatchServerInit(w.host)
	w.initPhase = false
}

// Shutdown dispatches the server-shutdown event and unloads the chain.
func (w *World) Shutdown() {
	w.reg.DispatchServerShutdown(w.host)
	w.reg.UnloadAll(w.host)
}

func (w *World) Inbox() chan<- Envelope     { return w.inbox }
func (w *World) Join() chan<- JoinRequest   { return w.join }
func (w *World) Leave() chan<- LeaveRequest { return w.leave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingJoins []JoinRequest
	var pendingLeaves []LeaveRequest
	var pendingMsgs []Envelope

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case req := <-w.leave:
			pendingLeaves = append(pendingLeaves, req)
		case env := <-w.inbox:
			pendingMsgs = append(pendingMsgs, env)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingMsgs)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingMsgs = pendingMsgs[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

func (w *World) step(joins []JoinRequest, leaves []LeaveRequest, msgs []Envelope) {
	started := time.Now()
	w.tick.Add(1)

	for _, req := range joins {
		w.handleJoin(req)
	}
	for _, req := range leaves {
		w.handleLeave(req)
	}
	for _, env := range msgs {
		w.apply(env)
	}
	w.advanceTransfers()
	w.reg.DispatchTick(w.host)

	w.playerCount.Store(int64(len(w.players)))
	w.clientCount.Store(int64(len(w.clients)))
	w.stepUS.Store(uint64(time.Since(started).Microseconds()))
}

func (w *World) apply(env Envelope) {
	p, ok := w.players[env.PlayerID]
	if !ok {
		return
	}
	switch m := env.Msg.(type) {
	case protocol.BlockActionMsg:
		w.applyBlockAction(p, m)
	case protocol.SetToolMsg:
		w.applySetTool(p, m)
	case protocol.SetColorMsg:
		w.applySetColor(p, m)
	case protocol.CmdMsg:
		w.applyCmd(p, m)
	case protocol.HitMsg:
		w.applyHit(p, m)
	case protocol.GrenadeMsg:
		w.reg.DispatchGrenadeExplode(w.host, p.ID, m.Pos)
	}
}

func (w *World) handleJoin(req JoinRequest) {
	id, ok := w.freePlayerID()
	if !ok {
		if req.Resp != nil {
			req.Resp <- JoinResponse{}
		}
		return
	}

	name := req.Name
	if name == "" {
		name = "player"
	}

	// Spawn on the surface of a deterministic per-id column.
	sx := spawnCoord(int(id)*3, w.cfg.Width)
	sy := spawnCoord(int(id)*7, w.cfg.Depth)
	sz, ok := w.terrain.FindTopSolid(sx, sy)
	if !ok {
		sz = w.cfg.BedrockZ
	}

	p := &Player{
		ID:   id,
		Name: name,
		Team: id % 2,
		Pos:  [3]float64{float64(sx) + 0.5, float64(sy) + 0.5, float64(sz) - 1},
	}
	p.initDefaults(w.cfg.ResourceCap)
	w.players[id] = p

	if req.Out != nil {
		w.clients[id] = &clientState{
			out:      req.Out,
			syncing:  true,
			transfer: &mapTransfer{},
		}
	}

	if req.Resp != nil {
		req.Resp <- JoinResponse{
			OK: true,
			Welcome: protocol.WelcomeMsg{
				Type:            protocol.TypeWelcome,
				ProtocolVersion: protocol.Version,
				PlayerID:        id,
				WorldParams: protocol.WorldParams{
					Width:    w.cfg.Width,
					Depth:    w.cfg.Depth,
					Height:   w.cfg.Height,
					BedrockZ: w.cfg.BedrockZ,
					Seed:     w.cfg.Seed,
				},
			},
		}
	}

	w.reg.DispatchPlayerConnect(w.host, id)
}

func (w *World) handleLeave(req LeaveRequest) {
	if _, ok := w.players[req.PlayerID]; !ok {
		return
	}
	w.reg.DispatchPlayerDisconnect(w.host, req.PlayerID, req.Reason)
	delete(w.players, req.PlayerID)
	delete(w.clients, req.PlayerID)
}

// spawnCoord spreads spawns across the interior, keeping a margin from the
// lateral boundary when the volume is wide enough to afford one.
func spawnCoord(n, dim int) int {
	const margin = 32
	if dim <= 2*margin {
		return n % dim
	}
	return margin + n%(dim-2*margin)
}

func (w *World) freePlayerID() (uint8, bool) {
	for id := 0; id < maxPlayers; id++ {
		if _, used := w.players[uint8(id)]; !used {
			return uint8(id), true
		}
	}
	return 0, false
}

func (w *World) applySetTool(p *Player, m protocol.SetToolMsg) {
	switch m.Tool {
	case protocol.ToolSpade, protocol.ToolBlock, protocol.ToolGun, protocol.ToolGrenade:
		p.Tool = m.Tool
	}
}

func (w *World) applySetColor(p *Player, m protocol.SetColorMsg) {
	color := m.Color
	if w.reg.DispatchColorChange(w.host, p.ID, &color) == ext.ResultDeny {
		return
	}
	p.ToolColor = color
}

func (w *World) applyCmd(p *Player, m protocol.CmdMsg) {
	if h, ok := w.commands[m.Name]; ok {
		h(p.ID, m.Args)
		return
	}
	cmdline := m.Name
	if m.Args != "" {
		cmdline += " " + m.Args
	}
	w.reg.DispatchCommand(w.host, p.ID, cmdline)
}

// Hit damage by region; the ranged validation itself (ammo, traces) belongs
// to the weapon collaborator.
var hitDamage = [5]int{49, 100, 33, 33, 50}

func (w *World) applyHit(p *Player, m protocol.HitMsg) {
	victim, ok := w.players[m.Victim]
	if !ok || !victim.Alive || !p.Alive || m.HitType >= uint8(len(hitDamage)) {
		return
	}
	if w.reg.DispatchPlayerHit(w.host, p.ID, victim.ID, m.HitType, m.Weapon) == ext.ResultDeny {
		return
	}
	victim.HP -= hitDamage[m.HitType]
	if victim.HP <= 0 {
		victim.HP = 0
		victim.Alive = false
	}
}

func (w *World) registerCommand(name string, h ext.CommandFunc) ext.Result {
	if name == "" || h == nil {
		return ext.ResultInvalidName
	}
	if _, dup := w.commands[name]; dup {
		return ext.ResultAlreadyRegistered
	}
	w.commands[name] = h
	return ext.ResultOK
}

func (w *World) sortedClientIDs() []uint8 {
	ids := make([]uint8, 0, len(w.clients))
	for id := range w.clients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

type WorldMetrics struct {
	Tick          uint64      `json:"tick"`
	Players       int         `json:"players"`
	Clients       int         `json:"clients"`
	SolidBlocks   int         `json:"solid_blocks"`
	EditsAccepted uint64      `json:"edits_accepted"`
	EditsDenied   uint64      `json:"edits_denied"`
	Collapsed     uint64      `json:"collapsed"`
	QueueDepths   QueueDepths `json:"queue_depths"`
	StepUS        uint64      `json:"step_us"`
}

// Metrics is safe to call from any goroutine: every field comes from an
// atomic the loop publishes, never from loop-owned state.
func (w *World) Metrics() WorldMetrics {
	return WorldMetrics{
		Tick:          w.tick.Load(),
		Players:       int(w.playerCount.Load()),
		Clients:       int(w.clientCount.Load()),
		SolidBlocks:   w.terrain.SolidCount(),
		EditsAccepted: w.editsAccepted.Load(),
		EditsDenied:   w.editsDenied.Load(),
		Collapsed:     w.collapsed.Load(),
		QueueDepths: QueueDepths{
			Inbox: len(w.inbox),
			Join:  len(w.join),
			Leave: len(w.leave),
		},
		StepUS: w.stepUS.Load(),
	}
}
