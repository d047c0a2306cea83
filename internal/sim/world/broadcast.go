package world

import (
	"encoding/json"

	"voxelsiege.gg/internal/protocol"
	"voxelsiege.gg/internal/sim/terrain"
)

// clientState is the per-connection fanout record. While a terrain transfer
// is in flight the client is syncing: committed updates are buffered in
// arrival order and replayed after the final part, so the client converges on
// the authoritative state without ever seeing an edit twice or out of order.
type clientState struct {
	out      chan []byte
	syncing  bool
	pending  [][]byte
	transfer *mapTransfer
}

// mapTransfer walks the terrain in column order, a fixed number of columns
// per part, a fixed number of parts per tick.
type mapTransfer struct {
	nextColumn int
	part       int
}

func (w *World) broadcastSet(pos terrain.Pos, color uint32, origin uint8) {
	w.broadcastUpdate(protocol.BlockUpdateMsg{
		Type:   protocol.TypeBlockUpdate,
		Action: "SET",
		Pos:    [3]int{pos.X, pos.Y, pos.Z},
		Color:  color,
		Origin: origin,
	})
}

func (w *World) broadcastAir(pos terrain.Pos, origin uint8) {
	w.broadcastUpdate(protocol.BlockUpdateMsg{
		Type:   protocol.TypeBlockUpdate,
		Action: "AIR",
		Pos:    [3]int{pos.X, pos.Y, pos.Z},
		Origin: origin,
	})
}

// broadcastUpdate marshals once and fans out in ascending player-id order.
// Syncing clients buffer; live clients that cannot keep up are evicted
// rather than allowed to diverge from the committed timeline.
func (w *World) broadcastUpdate(m protocol.BlockUpdateMsg) {
	raw, err := json.Marshal(m)
	if err != nil {
		return
	}
	for _, id := range w.sortedClientIDs() {
		c := w.clients[id]
		if c.syncing {
			c.pending = append(c.pending, raw)
			continue
		}
		select {
		case c.out <- raw:
		default:
			delete(w.clients, id)
		}
	}
}

// sendNotice is best effort; notices are advisory and may be dropped for a
// saturated client.
func (w *World) sendNotice(id uint8, message string) bool {
	c, ok := w.clients[id]
	if !ok {
		return false
	}
	raw, err := json.Marshal(protocol.NoticeMsg{Type: protocol.TypeNotice, Message: message})
	if err != nil {
		return false
	}
	select {
	case c.out <- raw:
	default:
	}
	return true
}

func (w *World) broadcastNotice(message string) {
	for _, id := range w.sortedClientIDs() {
		w.sendNotice(id, message)
	}
}

// advanceTransfers pushes up to PartsPerTick terrain slabs to each syncing
// client. A full client queue pauses the transfer at the current column
// instead of skipping it; pacing, not loss.
func (w *World) advanceTransfers() {
	total := w.cfg.Width * w.cfg.Depth
	for _, id := range w.sortedClientIDs() {
		c := w.clients[id]
		if !c.syncing {
			continue
		}
		if c.transfer == nil {
			w.finishTransfer(c)
			continue
		}
		for n := 0; n < w.cfg.PartsPerTick; n++ {
			tr := c.transfer
			last := tr.nextColumn+w.cfg.ColumnsPerPart >= total
			raw, cols := w.encodePart(tr.nextColumn, tr.part, last)
			if !trySend(c.out, raw) {
				break // pause until the queue drains
			}
			tr.nextColumn += cols
			tr.part++
			if last {
				w.finishTransfer(c)
				break
			}
		}
	}
}

func trySend(out chan []byte, raw []byte) bool {
	select {
	case out <- raw:
		return true
	default:
		return false
	}
}

// encodePart serializes ColumnsPerPart columns starting at the given column
// index into one zstd frame. Column index order matches the store layout:
// x*Depth + y.
func (w *World) encodePart(startColumn, part int, last bool) ([]byte, int) {
	total := w.cfg.Width * w.cfg.Depth
	end := startColumn + w.cfg.ColumnsPerPart
	if end > total {
		end = total
	}
	var buf []byte
	for col := startColumn; col < end; col++ {
		buf = w.terrain.AppendColumn(buf, col/w.cfg.Depth, col%w.cfg.Depth)
	}
	frame := w.zenc.EncodeAll(buf, nil)
	raw, _ := json.Marshal(protocol.MapPart{
		Type:            protocol.TypeMapPart,
		ProtocolVersion: protocol.Version,
		Part:            part,
		Last:            last,
		Data:            frame,
	})
	return raw, end - startColumn
}

// finishTransfer replays the edits buffered during the transfer, in arrival
// order, then flips the client live. A full queue pauses the replay; the
// remainder drains on subsequent ticks before the client goes live.
func (w *World) finishTransfer(c *clientState) {
	c.transfer = nil
	for len(c.pending) > 0 {
		if !trySend(c.out, c.pending[0]) {
			return
		}
		c.pending = c.pending[1:]
	}
	c.pending = nil
	c.syncing = false
}
