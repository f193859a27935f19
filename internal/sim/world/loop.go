package world

import (
	"context"
	"time"

	"voxelglow.dev/internal/sim/world/logic/grid"
)

// Mutation requests routed to the owner goroutine. Light queries do not
// go through the loop; QueryLight is already safe for concurrent use.
type EditRequest struct {
	Pos  grid.Vec3i
	ID   uint16
	Resp chan error
}

type PartitionRequest struct {
	Key    grid.PartitionKey
	Unload bool
	Resp   chan error
}

// Loop owns a World and serializes all mutation through its channels,
// driving Step at the configured tick rate.
type Loop struct {
	w *World

	edits chan EditRequest
	parts chan PartitionRequest
}

func NewLoop(w *World) *Loop {
	return &Loop{
		w:     w,
		edits: make(chan EditRequest, 256),
		parts: make(chan PartitionRequest, 64),
	}
}

func (l *Loop) World() *World                  { return l.w }
func (l *Loop) Edits() chan<- EditRequest      { return l.edits }
func (l *Loop) Parts() chan<- PartitionRequest { return l.parts }

// Run blocks until ctx is cancelled. A non-positive tick rate falls
// back to 20 Hz.
func (l *Loop) Run(ctx context.Context) {
	hz := l.w.cfg.Tuning.TickRateHz
	if hz <= 0 {
		hz = 20
	}
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.w.Step()
		case req := <-l.edits:
			req.Resp <- l.w.SetMaterial(req.Pos, req.ID)
		case req := <-l.parts:
			if req.Unload {
				req.Resp <- l.w.UnloadPartition(req.Key)
			} else {
				req.Resp <- l.w.LoadPartition(req.Key)
			}
		}
	}
}
