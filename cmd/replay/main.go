package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"voxelsiege.gg/internal/persistence/snapshot"
	"voxelsiege.gg/internal/protocol"
	"voxelsiege.gg/internal/sim/terrain"
	"voxelsiege.gg/internal/sim/tuning"
	"voxelsiege.gg/internal/sim/world"
)

// Replays an edit log onto a base terrain and verifies cascade fallout
// against the recorded counts. Collapse is deterministic given the same
// terrain state and probe radius, so a clean replay proves the log and the
// base agree.
func main() {
	var (
		mapPath    = flag.String("map", "", "base map snapshot (.map.zst); empty regenerates from -seed")
		editsDir   = flag.String("edits", "", "dir containing edits-*.jsonl.zst")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		seed       = flag.Int64("seed", 1337, "terrain seed when no -map is given")
		outPath    = flag.String("out", "", "write the replayed terrain as a map snapshot (optional)")
	)
	flag.Parse()

	if *editsDir == "" {
		fmt.Fprintln(os.Stderr, "missing -edits")
		os.Exit(2)
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			tune = tuning.Defaults()
		} else {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
	}

	var t *terrain.Terrain
	worldID := "replay"
	if *mapPath != "" {
		var hdr snapshot.Header
		t, hdr, err = snapshot.ReadMap(*mapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read map:", err)
			os.Exit(1)
		}
		worldID = hdr.WorldID
		fmt.Printf("base map world=%s tick=%d %dx%dx%d seed=%d\n",
			hdr.WorldID, hdr.Tick, t.Width, t.Depth, t.Height, hdr.Seed)
	} else {
		t = terrain.New(tune.Terrain.Width, tune.Terrain.Depth, tune.Terrain.Height, tune.Terrain.BedrockZ)
		terrain.Generate(t, *seed)
		fmt.Printf("generated base %dx%dx%d seed=%d\n", t.Width, t.Depth, t.Height, *seed)
	}

	files, err := listEditFiles(*editsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list edits:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no edit files found in", *editsDir)
		os.Exit(1)
	}

	var applied, lastTick uint64
	for _, path := range files {
		if err := replayFile(t, path, tune.Integrity.ProbeRadius, &applied, &lastTick); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}
	fmt.Printf("replay ok: applied=%d edits, last tick=%d, solid=%d\n", applied, lastTick, t.SolidCount())

	if *outPath != "" {
		if err := snapshot.WriteMap(*outPath, worldID, lastTick, *seed, t); err != nil {
			fmt.Fprintln(os.Stderr, "write map:", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", *outPath)
	}
}

func listEditFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "edits-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func replayFile(t *terrain.Terrain, path string, probeRadius int, applied, lastTick *uint64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for sc.Scan() {
		line := sc.Bytes()
		var entry world.EditLogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if err := applyEdit(t, entry, probeRadius); err != nil {
			return fmt.Errorf("%s tick=%d: %w", filepath.Base(path), entry.Tick, err)
		}
		*applied++
		*lastTick = entry.Tick
	}
	return sc.Err()
}

func applyEdit(t *terrain.Terrain, e world.EditLogEntry, probeRadius int) error {
	pos := terrain.Pos{X: e.Pos[0], Y: e.Pos[1], Z: e.Pos[2]}
	switch e.Kind {
	case protocol.ActionBuild:
		if t.IsSolid(pos) {
			return fmt.Errorf("build into solid cell (%d,%d,%d)", pos.X, pos.Y, pos.Z)
		}
		t.SetSolid(pos, e.Color)
		return nil

	case protocol.ActionDestroyOne:
		return vacateAndVerify(t, []terrain.Pos{pos}, e.Vacated, probeRadius)

	case protocol.ActionDestroyThree:
		// The log records the center; the committed cells are whichever of
		// the three were solid. Vacated count verification covers skips.
		var cells []terrain.Pos
		for z := pos.Z - 1; z <= pos.Z+1; z++ {
			c := terrain.Pos{X: pos.X, Y: pos.Y, Z: z}
			if z < 0 || z >= t.BedrockZ || !t.IsSolid(c) {
				continue
			}
			cells = append(cells, c)
		}
		return vacateAndVerify(t, cells, e.Vacated, probeRadius)

	default:
		return fmt.Errorf("unknown edit kind %q", e.Kind)
	}
}

func vacateAndVerify(t *terrain.Terrain, cells []terrain.Pos, want, probeRadius int) error {
	for _, c := range cells {
		if !t.IsSolid(c) {
			return fmt.Errorf("destroy of air cell (%d,%d,%d)", c.X, c.Y, c.Z)
		}
		t.SetAir(c)
	}
	fallen := t.Collapse(cells, probeRadius)
	if got := len(cells) + len(fallen); got != want {
		return fmt.Errorf("cascade mismatch: vacated %d, log says %d", got, want)
	}
	return nil
}
