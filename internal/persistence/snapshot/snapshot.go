// Package snapshot persists the full terrain volume: a one-line JSON header
// followed by the raw column stream, the whole file zstd-compressed. Used for
// custom map loading at startup and periodic map saves.
package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"voxelsiege.gg/internal/sim/terrain"
)

type Header struct {
	Version  int    `json:"version"`
	WorldID  string `json:"world_id"`
	Tick     uint64 `json:"tick"`
	Width    int    `json:"width"`
	Depth    int    `json:"depth"`
	Height   int    `json:"height"`
	BedrockZ int    `json:"bedrock_z"`
	Seed     int64  `json:"seed"`
}

const headerVersion = 1

// WriteMap serializes the terrain column by column in store order.
func WriteMap(path, worldID string, tick uint64, seed int64, t *terrain.Terrain) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hdr := Header{
		Version:  headerVersion,
		WorldID:  worldID,
		Tick:     tick,
		Width:    t.Width,
		Depth:    t.Depth,
		Height:   t.Height,
		BedrockZ: t.BedrockZ,
		Seed:     seed,
	}
	hb, _ := json.Marshal(hdr)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	var col []byte
	for x := 0; x < t.Width; x++ {
		for y := 0; y < t.Depth; y++ {
			col = t.AppendColumn(col[:0], x, y)
			if _, err := bw.Write(col); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadMap restores a terrain volume written by WriteMap.
func ReadMap(path string) (*terrain.Terrain, Header, error) {
	var hdr Header
	f, err := os.Open(path)
	if err != nil {
		return nil, hdr, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, hdr, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, hdr, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &hdr); err != nil {
		return nil, hdr, fmt.Errorf("decode header: %w", err)
	}
	if hdr.Version != headerVersion {
		return nil, hdr, fmt.Errorf("unsupported map version %d", hdr.Version)
	}
	if hdr.Height > 64 {
		return nil, hdr, fmt.Errorf("map height %d exceeds column format limit", hdr.Height)
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return nil, hdr, err
	}

	t := terrain.New(hdr.Width, hdr.Depth, hdr.Height, hdr.BedrockZ)
	rest := body
	for x := 0; x < t.Width; x++ {
		for y := 0; y < t.Depth; y++ {
			rest, err = t.ReadColumn(rest, x, y)
			if err != nil {
				return nil, hdr, err
			}
		}
	}
	return t, hdr, nil
}
