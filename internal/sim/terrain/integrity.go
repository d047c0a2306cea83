package terrain

// Structural integrity: after a cell is vacated, its solid neighbors must
// still reach an anchor (the bedrock layer, or a lateral volume boundary)
// through a path of solid cells within a bounded search radius. Neighbors
// that do not are vacated too, cascading until quiescent.
//
// The probe is a heuristic, not full-graph connectivity: the radius bound is
// a policy knob, matching the reference rule rather than real physics.

// Supported reports whether p can reach an anchor through solid 6-connected
// cells within radius (Chebyshev distance from p). p itself must be solid.
func (t *Terrain) Supported(p Pos, radius int) bool {
	if radius <= 0 {
		return true
	}
	if p.Z >= t.BedrockZ {
		return true
	}
	visited := map[Pos]struct{}{p: {}}
	frontier := []Pos{p}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		for _, n := range cur.Neighbors6() {
			if !t.InBounds(n) {
				// Stepping off the lattice sideways means the path reached
				// the volume boundary anchor.
				if n.Z >= 0 && n.Z < t.Height {
					return true
				}
				continue
			}
			if n.Z >= t.BedrockZ {
				if t.IsSolid(n) {
					return true
				}
				continue
			}
			if _, seen := visited[n]; seen {
				continue
			}
			if !t.IsSolid(n) {
				continue
			}
			if chebyshev(n, p) > radius {
				continue
			}
			visited[n] = struct{}{}
			frontier = append(frontier, n)
		}
	}
	return false
}

// Collapse seeds the integrity check from the neighbors of each vacated
// cell, removes every unsupported cell, and returns the removed positions
// in vacation order. Vacated cells must already be air; bedrock-layer
// neighbors are never candidates. An explicit worklist plus visited set
// keeps the walk independent of terrain size.
func (t *Terrain) Collapse(vacated []Pos, radius int) []Pos {
	var fallen []Pos
	var work []Pos
	queued := map[Pos]struct{}{}

	seed := func(p Pos) {
		for _, n := range p.Neighbors6() {
			if !t.InBounds(n) || n.Z >= t.BedrockZ {
				continue
			}
			if _, ok := queued[n]; ok {
				continue
			}
			if !t.IsSolid(n) {
				continue
			}
			queued[n] = struct{}{}
			work = append(work, n)
		}
	}
	for _, v := range vacated {
		seed(v)
	}

	for len(work) > 0 {
		p := work[0]
		work = work[1:]
		delete(queued, p)
		if !t.IsSolid(p) {
			continue
		}
		if t.Supported(p, radius) {
			continue
		}
		t.SetAir(p)
		fallen = append(fallen, p)
		seed(p)
	}
	return fallen
}

func chebyshev(a, b Pos) int {
	d := absInt(a.X - b.X)
	if dy := absInt(a.Y - b.Y); dy > d {
		d = dy
	}
	if dz := absInt(a.Z - b.Z); dz > d {
		d = dz
	}
	return d
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
