package world

import (
	"encoding/json"
	"testing"

	"github.com/klauspost/compress/zstd"

	"voxelsiege.gg/internal/protocol"
	"voxelsiege.gg/internal/sim/terrain"
)

// newTransferWorld builds an 8x8 world paced at two 32-column parts, so a
// full terrain transfer is exactly two MAP_PARTs.
func newTransferWorld(t *testing.T) *World {
	t.Helper()
	w, err := New(WorldConfig{
		ID:             "xfer",
		Width:          8,
		Depth:          8,
		Height:         64,
		BedrockZ:       62,
		ColumnsPerPart: 32,
		PartsPerTick:   2,
	}, nil, nil)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	w.terrain = terrain.New(8, 8, 64, 62)
	return w
}

func addSyncingClient(w *World, id uint8, depth int) chan []byte {
	ch := make(chan []byte, depth)
	w.clients[id] = &clientState{out: ch, syncing: true, transfer: &mapTransfer{}}
	return ch
}

func recvPart(t *testing.T, ch chan []byte) protocol.MapPart {
	t.Helper()
	select {
	case raw := <-ch:
		base, err := protocol.DecodeBase(raw)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if base.Type != protocol.TypeMapPart {
			t.Fatalf("message type = %s, want %s", base.Type, protocol.TypeMapPart)
		}
		var part protocol.MapPart
		if err := json.Unmarshal(raw, &part); err != nil {
			t.Fatalf("unmarshal part: %v", err)
		}
		return part
	default:
		t.Fatalf("no message queued")
		return protocol.MapPart{}
	}
}

// applyParts decodes a complete transfer into a fresh terrain.
func applyParts(t *testing.T, w *World, parts []protocol.MapPart) *terrain.Terrain {
	t.Helper()
	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	tr := terrain.New(w.cfg.Width, w.cfg.Depth, w.cfg.Height, w.cfg.BedrockZ)
	col := 0
	for _, part := range parts {
		buf, err := dec.DecodeAll(part.Data, nil)
		if err != nil {
			t.Fatalf("part %d: decompress: %v", part.Part, err)
		}
		for len(buf) > 0 {
			buf, err = tr.ReadColumn(buf, col/w.cfg.Depth, col%w.cfg.Depth)
			if err != nil {
				t.Fatalf("column %d: %v", col, err)
			}
			col++
		}
	}
	if col != w.cfg.Width*w.cfg.Depth {
		t.Fatalf("decoded %d columns, want %d", col, w.cfg.Width*w.cfg.Depth)
	}
	return tr
}

func TestTransferDeliversWholeTerrain(t *testing.T) {
	w := newTransferWorld(t)
	w.terrain.SetSolid(terrain.Pos{X: 3, Y: 4, Z: 40}, 0xFF123456)
	w.terrain.SetSolid(terrain.Pos{X: 7, Y: 7, Z: 61}, 0xFF654321)
	ch := addSyncingClient(w, 1, 16)

	w.advanceTransfers()

	first := recvPart(t, ch)
	second := recvPart(t, ch)
	if first.Part != 0 || first.Last {
		t.Fatalf("first part = %d last=%v", first.Part, first.Last)
	}
	if second.Part != 1 || !second.Last {
		t.Fatalf("second part = %d last=%v", second.Part, second.Last)
	}

	got := applyParts(t, w, []protocol.MapPart{first, second})
	if got.SolidCount() != w.terrain.SolidCount() {
		t.Fatalf("solid count %d, want %d", got.SolidCount(), w.terrain.SolidCount())
	}
	if c := got.Color(terrain.Pos{X: 3, Y: 4, Z: 40}); c != 0xFF123456 {
		t.Fatalf("color = %08X", c)
	}

	if w.clients[1].syncing {
		t.Fatalf("client still syncing after last part")
	}
}

func TestSyncingClientBuffersAndReplaysEdits(t *testing.T) {
	w := newTransferWorld(t)
	ch := addSyncingClient(w, 1, 16)

	// Edits committed mid-transfer must not reach the wire yet.
	w.broadcastSet(terrain.Pos{X: 2, Y: 2, Z: 50}, 0xFF0000FF, 4)
	w.broadcastAir(terrain.Pos{X: 2, Y: 2, Z: 51}, protocol.ServerOriginID)
	if len(ch) != 0 {
		t.Fatalf("syncing client received %d messages early", len(ch))
	}

	w.advanceTransfers()

	recvPart(t, ch)
	recvPart(t, ch)
	ups := drainUpdates(t, ch)
	if len(ups) != 2 {
		t.Fatalf("replayed %d updates, want 2", len(ups))
	}
	if ups[0].Action != "SET" || ups[0].Pos != [3]int{2, 2, 50} {
		t.Fatalf("replay[0] = %+v, want the buffered SET first", ups[0])
	}
	if ups[1].Action != "AIR" || ups[1].Origin != protocol.ServerOriginID {
		t.Fatalf("replay[1] = %+v", ups[1])
	}
}

func TestTransferPausesOnFullQueue(t *testing.T) {
	w := newTransferWorld(t)
	ch := addSyncingClient(w, 1, 1)

	// Only one slot: the second part of the tick must wait, not skip.
	w.advanceTransfers()
	first := recvPart(t, ch)
	if first.Part != 0 {
		t.Fatalf("first part = %d", first.Part)
	}
	if !w.clients[1].syncing || w.clients[1].transfer == nil {
		t.Fatalf("paused transfer was dropped")
	}

	w.advanceTransfers()
	second := recvPart(t, ch)
	if second.Part != 1 || !second.Last {
		t.Fatalf("resumed part = %d last=%v, want the next column run", second.Part, second.Last)
	}
	if w.clients[1].syncing {
		t.Fatalf("client still syncing after resume")
	}
}

func TestPendingReplayDrainsAcrossTicks(t *testing.T) {
	w := newTransferWorld(t)
	ch := addSyncingClient(w, 1, 3)

	for i := 0; i < 4; i++ {
		w.broadcastSet(terrain.Pos{X: i, Y: 0, Z: 50}, 0xFF000001, 4)
	}

	// Tick one: both parts fit, then one buffered update before the queue
	// fills. The client must stay syncing with the remainder held.
	w.advanceTransfers()
	recvPart(t, ch)
	recvPart(t, ch)
	if ups := drainUpdates(t, ch); len(ups) != 1 {
		t.Fatalf("tick 1 replayed %d updates, want 1", len(ups))
	}
	if !w.clients[1].syncing {
		t.Fatalf("client went live with updates still pending")
	}

	w.advanceTransfers()
	ups := drainUpdates(t, ch)
	if len(ups) != 3 {
		t.Fatalf("tick 2 replayed %d updates, want 3", len(ups))
	}
	if ups[0].Pos != [3]int{1, 0, 50} || ups[2].Pos != [3]int{3, 0, 50} {
		t.Fatalf("replay order broken: %+v", ups)
	}
	if w.clients[1].syncing {
		t.Fatalf("client still syncing after the drain")
	}
}

func TestSlowLiveClientEvicted(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	slow := addClient(w, 1, 1)
	fast := addClient(w, 2, 16)
	slow <- []byte("stuck")

	w.broadcastSet(terrain.Pos{X: 5, Y: 5, Z: 50}, 0xFF000001, 9)

	if _, ok := w.clients[1]; ok {
		t.Fatalf("saturated live client must be evicted")
	}
	if _, ok := w.clients[2]; !ok {
		t.Fatalf("healthy client evicted")
	}
	if ups := drainUpdates(t, fast); len(ups) != 1 {
		t.Fatalf("healthy client got %d updates", len(ups))
	}
}

func TestNoticeBestEffort(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	full := addClient(w, 1, 1)
	full <- []byte("stuck")

	if !w.sendNotice(1, "hello") {
		t.Fatalf("known client must report true even when saturated")
	}
	if w.sendNotice(9, "hello") {
		t.Fatalf("unknown client must report false")
	}
	if _, ok := w.clients[1]; !ok {
		t.Fatalf("notices must never evict")
	}
}
