package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"voxelglow.dev/internal/protocol"
	"voxelglow.dev/internal/sim/world"
	lightpkg "voxelglow.dev/internal/sim/world/light"
	lightstore "voxelglow.dev/internal/sim/world/light/store"
	"voxelglow.dev/internal/sim/world/logic/grid"
)

type Server struct {
	loop *world.Loop
	log  *log.Logger

	sessionSeq atomic.Uint64
	upgrader   websocket.Upgrader
}

func NewServer(loop *world.Loop, logger *log.Logger) *Server {
	return &Server{
		loop: loop,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if !s.handshake(conn) {
			return
		}

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			if base.ProtocolVersion != protocol.Version {
				continue
			}
			switch base.Type {
			case protocol.TypeQuery:
				s.handleQuery(conn, msg)
			case protocol.TypeEdit:
				s.handleEdit(conn, msg)
			case protocol.TypeLoad, protocol.TypeUnload:
				s.handlePartition(conn, msg, base.Type == protocol.TypeUnload)
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) bool {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return false
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return false
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return false
	}

	w := s.loop.World()
	cats := w.Catalogs()
	bounds := w.Bounds()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       fmt.Sprintf("S%d", s.sessionSeq.Add(1)),
		WorldID:         w.ID(),
		WorldParams: protocol.WorldParams{
			TickRateHz:    w.TickRateHz(),
			PartitionSize: grid.PartitionSize,
			FloorY:        bounds.FloorY,
			CeilY:         bounds.CeilY,
		},
		Catalogs: protocol.CatalogDigests{
			MaterialPalette: protocol.DigestRef{
				Digest: cats.Materials.PaletteDigest,
				Count:  len(cats.Materials.Palette),
			},
			MaterialsDigest: cats.Materials.DefsDigest,
		},
	}
	return writeJSON(conn, welcome) == nil
}

func (s *Server) handleQuery(conn *websocket.Conn, msg []byte) {
	var q protocol.QueryMsg
	if err := json.Unmarshal(msg, &q); err != nil {
		return
	}
	res := protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ID:              q.ID,
		ServerTick:      s.loop.World().CurrentTick(),
	}

	var ch lightstore.Channel
	switch q.Channel {
	case "sky":
		ch = lightstore.Sky
	case "emissive":
		ch = lightstore.Emissive
	default:
		res.Code = protocol.ErrBadRequest
		res.Message = fmt.Sprintf("unknown channel %q", q.Channel)
		_ = writeJSON(conn, res)
		return
	}

	lv, err := s.loop.World().QueryLight(grid.Vec3i{X: q.Pos[0], Y: q.Pos[1], Z: q.Pos[2]}, ch)
	if err != nil {
		res.Code, res.Message = errCode(err)
	} else {
		res.Level = int(lv)
	}
	_ = writeJSON(conn, res)
}

func (s *Server) handleEdit(conn *websocket.Conn, msg []byte) {
	var e protocol.EditMsg
	if err := json.Unmarshal(msg, &e); err != nil {
		return
	}
	ack := protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          e.ID,
	}

	id, ok := s.loop.World().Catalogs().Materials.Index[e.Material]
	if !ok {
		ack.Code = protocol.ErrUnknownMaterial
		ack.Message = e.Material
		_ = writeJSON(conn, ack)
		return
	}

	resp := make(chan error, 1)
	s.loop.Edits() <- world.EditRequest{
		Pos:  grid.Vec3i{X: e.Pos[0], Y: e.Pos[1], Z: e.Pos[2]},
		ID:   id,
		Resp: resp,
	}
	if err := <-resp; err != nil {
		ack.Code, ack.Message = errCode(err)
	} else {
		ack.Accepted = true
	}
	ack.ServerTick = s.loop.World().CurrentTick()
	_ = writeJSON(conn, ack)
}

func (s *Server) handlePartition(conn *websocket.Conn, msg []byte, unload bool) {
	var p protocol.PartitionMsg
	if err := json.Unmarshal(msg, &p); err != nil {
		return
	}
	ack := protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          p.ID,
	}

	resp := make(chan error, 1)
	s.loop.Parts() <- world.PartitionRequest{
		Key:    grid.PartitionKey{PX: p.PX, PZ: p.PZ},
		Unload: unload,
		Resp:   resp,
	}
	if err := <-resp; err != nil {
		ack.Code, ack.Message = errCode(err)
		s.log.Printf("partition %d,%d: %v", p.PX, p.PZ, err)
	} else {
		ack.Accepted = true
	}
	ack.ServerTick = s.loop.World().CurrentTick()
	_ = writeJSON(conn, ack)
}

func errCode(err error) (code, msg string) {
	switch {
	case errors.Is(err, lightpkg.ErrNotLoaded):
		return protocol.ErrNotLoaded, err.Error()
	case errors.Is(err, lightpkg.ErrUninitialized):
		return protocol.ErrUninitialized, err.Error()
	default:
		return protocol.ErrInternal, err.Error()
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
