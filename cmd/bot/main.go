package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"

	"voxelsiege.gg/internal/protocol"
)

// A minimal load-test client: completes the handshake, drains the terrain
// transfer, then alternates building and digging around its spawn column.
func main() {
	var (
		url  = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name = flag.String("name", "bot", "player name")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 128},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	zdec, err := zstd.NewReader(nil)
	if err != nil {
		logger.Fatalf("zstd: %v", err)
	}
	defer zdec.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	var (
		params    protocol.WorldParams
		mapBytes  int
		synced    bool
		rng       = rand.New(rand.NewSource(time.Now().UnixNano()))
		editTimer = time.NewTicker(700 * time.Millisecond)
		building  = true
	)
	defer editTimer.Stop()

	go func() {
		<-stop
		_ = conn.Close()
	}()

	for {
		select {
		case <-editTimer.C:
			if !synced {
				continue
			}
			// Poke at a small area near the middle of the volume. The
			// server silently drops whatever is out of reach; the point is
			// sustained validator traffic.
			x := params.Width/2 + rng.Intn(9) - 4
			y := params.Depth/2 + rng.Intn(9) - 4
			z := params.BedrockZ - 1 - rng.Intn(4)
			kind := protocol.ActionDestroyOne
			tool := protocol.ToolSpade
			if building {
				kind = protocol.ActionBuild
				tool = protocol.ToolBlock
			}
			building = !building
			_ = conn.WriteJSON(protocol.SetToolMsg{
				Type:            protocol.TypeSetTool,
				ProtocolVersion: protocol.Version,
				Tool:            tool,
			})
			_ = conn.WriteJSON(protocol.BlockActionMsg{
				Type:            protocol.TypeBlockAction,
				ProtocolVersion: protocol.Version,
				Kind:            kind,
				Pos:             [3]int{x, y, z},
				Color:           0xFF00A0FF,
			})
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			params = w.WorldParams
			logger.Printf("WELCOME player_id=%d world=%dx%dx%d seed=%d",
				w.PlayerID, params.Width, params.Depth, params.Height, params.Seed)

		case protocol.TypeMapPart:
			var part protocol.MapPart
			if err := json.Unmarshal(msg, &part); err != nil {
				continue
			}
			raw, err := zdec.DecodeAll(part.Data, nil)
			if err != nil {
				logger.Printf("map part %d: bad frame: %v", part.Part, err)
				continue
			}
			mapBytes += len(raw)
			if part.Last {
				synced = true
				logger.Printf("map transfer complete: %d parts, %d bytes raw", part.Part+1, mapBytes)
			}

		case protocol.TypeBlockUpdate:
			// Ignored; the bot does not track terrain.

		case protocol.TypeNotice:
			var n protocol.NoticeMsg
			if err := json.Unmarshal(msg, &n); err != nil {
				continue
			}
			logger.Printf("NOTICE %s", n.Message)
		}
	}
}
