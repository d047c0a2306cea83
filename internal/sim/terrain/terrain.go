package terrain

import (
	"fmt"
	"sync/atomic"
)

// Pos is an integer cell position. X and Y are horizontal; Z grows downward,
// so Z = Height-1 is the lowest layer.
type Pos struct {
	X, Y, Z int
}

// Neighbors6 returns the 6-connected neighbors of p (not bounds-checked).
func (p Pos) Neighbors6() [6]Pos {
	return [6]Pos{
		{p.X + 1, p.Y, p.Z},
		{p.X - 1, p.Y, p.Z},
		{p.X, p.Y + 1, p.Z},
		{p.X, p.Y - 1, p.Z},
		{p.X, p.Y, p.Z + 1},
		{p.X, p.Y, p.Z - 1},
	}
}

// Terrain is the columnar voxel store for one fixed-size volume. Cells are
// solid (carrying a raw 32-bit BGRA color) or air. Cells at z >= BedrockZ
// are always solid and immutable.
//
// Accessed only from the world loop goroutine. This layer trusts its input:
// out-of-bounds positions and bedrock mutation are programming errors and
// panic; bounds and policy are the callers' contract.
type Terrain struct {
	Width    int
	Depth    int
	Height   int
	BedrockZ int

	// Column-contiguous: index = (x*Depth + y)*Height + z.
	colors []uint32
	solid  []uint64 // bitset over the same index space

	// Atomic so metrics readers outside the loop goroutine see a coherent
	// value. Everything else in this struct stays loop-owned.
	solidCount atomic.Int64
}

func New(width, depth, height, bedrockZ int) *Terrain {
	if width <= 0 || depth <= 0 || height <= 0 {
		panic(fmt.Sprintf("terrain: bad dimensions %dx%dx%d", width, depth, height))
	}
	if bedrockZ <= 0 || bedrockZ >= height {
		bedrockZ = height - 2
	}
	n := width * depth * height
	t := &Terrain{
		Width:    width,
		Depth:    depth,
		Height:   height,
		BedrockZ: bedrockZ,
		colors:   make([]uint32, n),
		solid:    make([]uint64, (n+63)/64),
	}
	// Bedrock rows are born solid.
	for x := 0; x < width; x++ {
		for y := 0; y < depth; y++ {
			for z := bedrockZ; z < height; z++ {
				t.setSolidRaw(Pos{x, y, z}, defaultBedrockColor)
			}
		}
	}
	return t
}

const defaultBedrockColor = 0xFF404040

func (t *Terrain) InBounds(p Pos) bool {
	return p.X >= 0 && p.X < t.Width &&
		p.Y >= 0 && p.Y < t.Depth &&
		p.Z >= 0 && p.Z < t.Height
}

func (t *Terrain) index(p Pos) int {
	if !t.InBounds(p) {
		panic(fmt.Sprintf("terrain: out of bounds (%d,%d,%d)", p.X, p.Y, p.Z))
	}
	return (p.X*t.Depth+p.Y)*t.Height + p.Z
}

func (t *Terrain) IsSolid(p Pos) bool {
	i := t.index(p)
	return t.solid[i>>6]&(1<<(uint(i)&63)) != 0
}

// Color returns the stored color. Meaningful only for solid cells.
func (t *Terrain) Color(p Pos) uint32 {
	return t.colors[t.index(p)]
}

// SetSolid makes the cell solid with the given color. Recoloring an already
// solid cell is allowed (extensions rewrite colors).
func (t *Terrain) SetSolid(p Pos, color uint32) {
	if p.Z >= t.BedrockZ {
		panic(fmt.Sprintf("terrain: bedrock mutation at (%d,%d,%d)", p.X, p.Y, p.Z))
	}
	t.setSolidRaw(p, color)
}

func (t *Terrain) setSolidRaw(p Pos, color uint32) {
	i := t.index(p)
	if t.solid[i>>6]&(1<<(uint(i)&63)) == 0 {
		t.solid[i>>6] |= 1 << (uint(i) & 63)
		t.solidCount.Add(1)
	}
	t.colors[i] = color
}

// SetAir vacates the cell.
func (t *Terrain) SetAir(p Pos) {
	if p.Z >= t.BedrockZ {
		panic(fmt.Sprintf("terrain: bedrock mutation at (%d,%d,%d)", p.X, p.Y, p.Z))
	}
	i := t.index(p)
	if t.solid[i>>6]&(1<<(uint(i)&63)) != 0 {
		t.solid[i>>6] &^= 1 << (uint(i) & 63)
		t.solidCount.Add(-1)
	}
	t.colors[i] = 0
}

// FindTopSolid scans the (x,y) column from the top (z=0) downward and
// returns the first solid z. ok is always true in practice because bedrock
// rows are solid, but callers outside the volume get (0, false).
func (t *Terrain) FindTopSolid(x, y int) (int, bool) {
	if x < 0 || x >= t.Width || y < 0 || y >= t.Depth {
		return 0, false
	}
	base := (x*t.Depth + y) * t.Height
	for z := 0; z < t.Height; z++ {
		i := base + z
		if t.solid[i>>6]&(1<<(uint(i)&63)) != 0 {
			return z, true
		}
	}
	return 0, false
}

// SolidCount may be read from any goroutine.
func (t *Terrain) SolidCount() int { return int(t.solidCount.Load()) }

// AppendColumn serializes one column as: 8-byte little-endian solid mask
// (bit z set = solid), then the colors of solid cells top-down, 4 bytes LE
// each. Used by the terrain transfer encoder; Height must be <= 64.
func (t *Terrain) AppendColumn(dst []byte, x, y int) []byte {
	base := (x*t.Depth + y) * t.Height
	var mask uint64
	for z := 0; z < t.Height; z++ {
		i := base + z
		if t.solid[i>>6]&(1<<(uint(i)&63)) != 0 {
			mask |= 1 << uint(z)
		}
	}
	for s := 0; s < 8; s++ {
		dst = append(dst, byte(mask>>(8*s)))
	}
	for z := 0; z < t.Height; z++ {
		if mask&(1<<uint(z)) == 0 {
			continue
		}
		c := t.colors[base+z]
		dst = append(dst, byte(c), byte(c>>8), byte(c>>16), byte(c>>24))
	}
	return dst
}

// ReadColumn decodes one column produced by AppendColumn into the terrain at
// (x,y), returning the remaining bytes. Used by tests and replay tooling.
func (t *Terrain) ReadColumn(src []byte, x, y int) ([]byte, error) {
	if len(src) < 8 {
		return nil, fmt.Errorf("column (%d,%d): short mask", x, y)
	}
	var mask uint64
	for s := 0; s < 8; s++ {
		mask |= uint64(src[s]) << (8 * s)
	}
	src = src[8:]
	for z := 0; z < t.Height; z++ {
		p := Pos{x, y, z}
		if mask&(1<<uint(z)) == 0 {
			if z < t.BedrockZ && t.IsSolid(p) {
				t.SetAir(p)
			}
			continue
		}
		if len(src) < 4 {
			return nil, fmt.Errorf("column (%d,%d): short color at z=%d", x, y, z)
		}
		c := uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16 | uint32(src[3])<<24
		src = src[4:]
		if z < t.BedrockZ {
			t.SetSolid(p, c)
		}
	}
	return src, nil
}
