package terrain

// Generate fills the volume with a deterministic heightmap: every column is
// solid from its surface down to bedrock, colored by depth band. Extensions
// may overwrite any of it during server init.
func Generate(t *Terrain, seed int64) {
	relief := t.BedrockZ / 2
	for x := 0; x < t.Width; x++ {
		for y := 0; y < t.Depth; y++ {
			surface := t.BedrockZ - 1 - int(hash2(seed, x, y)%uint64(relief))
			for z := surface; z < t.BedrockZ; z++ {
				t.SetSolid(Pos{x, y, z}, bandColor(seed, x, y, z, surface))
			}
		}
	}
}

func bandColor(seed int64, x, y, z, surface int) uint32 {
	// BGRA with the alpha byte reserved.
	switch {
	case z == surface:
		g := uint32(0x90 + hash3(seed, x, y, z)%0x30)
		return 0xFF200020 | g<<8 // grass
	case z-surface < 3:
		return 0xFF2F5F8F // dirt band
	default:
		v := 0x60 + byte(hash3(seed, x, y, z)%0x20)
		return 0xFF000000 | uint32(v)<<16 | uint32(v)<<8 | uint32(v)
	}
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hash2(seed int64, x, y int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

func hash3(seed int64, x, y, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xc2b2ae3d27d4eb4f) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}
