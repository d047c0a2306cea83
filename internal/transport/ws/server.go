package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"voxelsiege.gg/internal/protocol"
	"voxelsiege.gg/internal/sim/world"
)

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	s := &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		playerID, out, ok := s.handshake(conn)
		if !ok {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine. The world never blocks on this queue; it paces
		// the terrain transfer against it and evicts live stragglers.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, chOK := <-out:
					if !chOK {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		reason := "disconnect"
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				reason = "read error"
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			if base.ProtocolVersion != "" && base.ProtocolVersion != protocol.Version {
				continue
			}
			decoded, ok := decodeClientMsg(base.Type, msg)
			if !ok {
				continue
			}
			s.world.Inbox() <- world.Envelope{PlayerID: playerID, Msg: decoded}
		}

		s.world.Leave() <- world.LeaveRequest{PlayerID: playerID, Reason: reason}
	}
}

// decodeClientMsg maps a routable type onto its concrete message. Unknown
// types and malformed payloads are dropped, never answered.
func decodeClientMsg(typ string, msg []byte) (any, bool) {
	switch typ {
	case protocol.TypeBlockAction:
		var m protocol.BlockActionMsg
		if json.Unmarshal(msg, &m) != nil {
			return nil, false
		}
		return m, true
	case protocol.TypeSetTool:
		var m protocol.SetToolMsg
		if json.Unmarshal(msg, &m) != nil {
			return nil, false
		}
		return m, true
	case protocol.TypeSetColor:
		var m protocol.SetColorMsg
		if json.Unmarshal(msg, &m) != nil {
			return nil, false
		}
		return m, true
	case protocol.TypeCmd:
		var m protocol.CmdMsg
		if json.Unmarshal(msg, &m) != nil {
			return nil, false
		}
		return m, true
	case protocol.TypeHit:
		var m protocol.HitMsg
		if json.Unmarshal(msg, &m) != nil {
			return nil, false
		}
		return m, true
	case protocol.TypeGrenade:
		var m protocol.GrenadeMsg
		if json.Unmarshal(msg, &m) != nil {
			return nil, false
		}
		return m, true
	}
	return nil, false
}

func (s *Server) handshake(conn *websocket.Conn) (playerID uint8, out chan []byte, ok bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return 0, nil, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return 0, nil, false
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return 0, nil, false
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return 0, nil, false
	}

	// The queue also carries terrain transfer parts; too small and the
	// transfer never outpaces the per-tick pause check.
	maxQ := hello.Capabilities.MaxQueue
	if maxQ < 16 {
		maxQ = 64
	}
	if maxQ > 256 {
		maxQ = 256
	}
	out = make(chan []byte, maxQ)

	respCh := make(chan world.JoinResponse, 1)
	s.world.Join() <- world.JoinRequest{
		Name: hello.PlayerName,
		Out:  out,
		Resp: respCh,
	}
	resp := <-respCh
	if !resp.OK {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server full"), time.Now().Add(time.Second))
		return 0, nil, false
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.world.Leave() <- world.LeaveRequest{PlayerID: resp.Welcome.PlayerID, Reason: "handshake write"}
		return 0, nil, false
	}
	return resp.Welcome.PlayerID, out, true
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
