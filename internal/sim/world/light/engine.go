package light

import (
	"context"
	"sync"
	"time"

	lightstore "voxelglow.dev/internal/sim/world/light/store"
	"voxelglow.dev/internal/sim/world/logic/grid"
	terrain "voxelglow.dev/internal/sim/world/terrain/store"
)

type Config struct {
	Bounds grid.Bounds

	// RetractBudget caps nodes zeroed per edit; the rest of the walk
	// carries over to later ticks.
	RetractBudget int

	// Workers sizes the background init pool.
	Workers int
}

// Source exposes the immutable material lookup tables. Read-only after
// startup, so workers share it without locking.
type Source interface {
	Opacity(id uint16) uint8
	Emission(id uint16) uint8
}

type state uint8

const (
	stateInitializing state = iota
	stateReady
)

type entry struct {
	key     grid.PartitionKey
	terrain *terrain.Partition
	light   *lightstore.PartitionLight // nil until ready
	state   state
	gen     uint64
	cancel  context.CancelFunc
}

type initTask struct {
	ctx context.Context
	key grid.PartitionKey
	gen uint64
	t   *terrain.Partition
}

type initResult struct {
	key     grid.PartitionKey
	gen     uint64
	light   *lightstore.PartitionLight
	nodes   int
	dur     time.Duration
	aborted bool
}

// Engine is the update coordinator. All mutating calls
// (OnPartitionLoaded/Unloaded, OnMaterialChanged, Tick, AdoptPersisted)
// belong to one owner goroutine, mirroring a world tick loop;
// QueryLight is safe from any goroutine. Background init builds run on
// the worker pool against detached state and are published by Tick.
type Engine struct {
	cfg  Config
	src  Source
	sink EventSink

	mu     sync.RWMutex
	parts  map[grid.PartitionKey]*entry
	genSeq uint64

	ctx    context.Context
	cancel context.CancelFunc
	tasks  chan initTask
	done   chan initResult
	wg     sync.WaitGroup

	deferred []*frontier
}

func New(cfg Config, src Source, sink EventSink) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetractBudget <= 0 {
		cfg.RetractBudget = 4096
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:    cfg,
		src:    src,
		sink:   sink,
		parts:  map[grid.PartitionKey]*entry{},
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(chan initTask, 1024),
		done:   make(chan initResult, 1024),
	}
	for i := 0; i < cfg.Workers; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.worker()
		}()
	}
	return e
}

func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}

func (e *Engine) worker() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case t := <-e.tasks:
			res := buildLight(t, e.cfg.Bounds, e.src)
			select {
			case <-e.ctx.Done():
				return
			case e.done <- res:
			}
		}
	}
}

// buildLight runs the full local init sequence for one partition on
// detached state: height index, sky and emissive seeding, propagation
// clamped to the column. Border exchange happens after publication.
func buildLight(t initTask, bounds grid.Bounds, src Source) initResult {
	start := time.Now()
	pl := lightstore.NewPartitionLight(t.key, bounds)
	pl.BuildHeightIndex(t.t, src.Opacity)

	v := &partView{pl: pl, t: t.t}
	res := initResult{key: t.key, gen: t.gen, light: pl}

	var q queue
	seedSky(pl, &q)
	n, aborted := propagate(t.ctx, v, src.Opacity, lightstore.Sky, &q)
	res.nodes += n
	if !aborted {
		var eq queue
		seedEmissive(t.t, src.Emission, &eq)
		n, aborted = propagate(t.ctx, v, src.Opacity, lightstore.Emissive, &eq)
		res.nodes += n
	}
	res.aborted = aborted
	res.dur = time.Since(start)
	return res
}

// OnPartitionLoaded starts the background init sequence for a freshly
// loaded partition. The terrain partition must not be mutated until the
// partition reports ready; the world facade rejects edits before then.
func (e *Engine) OnPartitionLoaded(key grid.PartitionKey, t *terrain.Partition) {
	e.mu.Lock()
	if old := e.parts[key]; old != nil && old.cancel != nil {
		old.cancel()
	}
	e.genSeq++
	ctx, cancel := context.WithCancel(e.ctx)
	ent := &entry{key: key, terrain: t, state: stateInitializing, gen: e.genSeq, cancel: cancel}
	e.parts[key] = ent
	gen := ent.gen
	e.mu.Unlock()

	select {
	case e.tasks <- initTask{ctx: ctx, key: key, gen: gen, t: t}:
	case <-e.ctx.Done():
	}
}

// AdoptPersisted publishes light state restored from a snapshot,
// skipping the init pipeline; only the border exchange reruns, which is
// a no-op when nothing changed while the partition was unloaded.
func (e *Engine) AdoptPersisted(key grid.PartitionKey, t *terrain.Partition, pl *lightstore.PartitionLight) {
	e.mu.Lock()
	if old := e.parts[key]; old != nil && old.cancel != nil {
		old.cancel()
	}
	e.genSeq++
	e.parts[key] = &entry{key: key, terrain: t, light: pl, state: stateReady, gen: e.genSeq}
	e.mu.Unlock()
	e.syncBorders(key)
}

// OnPartitionUnloaded cancels in-flight init work and releases the
// arrays. Partial state from a cancelled init is never published; a
// later load redoes the full sequence.
func (e *Engine) OnPartitionUnloaded(key grid.PartitionKey) {
	e.mu.Lock()
	if ent := e.parts[key]; ent != nil {
		if ent.cancel != nil {
			ent.cancel()
		}
		delete(e.parts, key)
	}
	e.mu.Unlock()
}

// QueryLight returns the stored level at pos. ErrNotLoaded when the
// partition is not resident, ErrUninitialized while its init pipeline
// is still running; never a stale value.
func (e *Engine) QueryLight(pos grid.Vec3i, ch lightstore.Channel) (uint8, error) {
	if !e.cfg.Bounds.InRange(pos.Y) {
		return 0, ErrNotLoaded
	}
	e.mu.RLock()
	ent := e.parts[grid.KeyFor(pos)]
	var pl *lightstore.PartitionLight
	if ent != nil && ent.state == stateReady {
		pl = ent.light
	}
	e.mu.RUnlock()
	if ent == nil {
		return 0, ErrNotLoaded
	}
	if pl == nil {
		return 0, ErrUninitialized
	}
	return pl.Get(pos, ch), nil
}

// Ready reports whether a partition's light is valid for querying.
func (e *Engine) Ready(key grid.PartitionKey) bool {
	e.mu.RLock()
	ent := e.parts[key]
	ok := ent != nil && ent.state == stateReady
	e.mu.RUnlock()
	return ok
}

// Snapshot returns the light state of a ready partition for
// persistence, or nil.
func (e *Engine) Snapshot(key grid.PartitionKey) *lightstore.PartitionLight {
	e.mu.RLock()
	ent := e.parts[key]
	var pl *lightstore.PartitionLight
	if ent != nil && ent.state == stateReady {
		pl = ent.light
	}
	e.mu.RUnlock()
	return pl
}

// DeferredFrontiers reports retraction walks waiting for a later tick.
func (e *Engine) DeferredFrontiers() int {
	return len(e.deferred)
}

// Tick publishes completed background inits and resumes deferred
// retraction frontiers, each under a fresh budget.
func (e *Engine) Tick(tick uint64) {
	for {
		select {
		case res := <-e.done:
			e.publish(res, tick)
		default:
			e.resumeDeferred(tick)
			return
		}
	}
}

func (e *Engine) publish(res initResult, tick uint64) {
	e.mu.Lock()
	ent := e.parts[res.key]
	ok := !res.aborted && ent != nil && ent.gen == res.gen && ent.state == stateInitializing
	if ok {
		ent.light = res.light
		ent.state = stateReady
		ent.cancel = nil
	}
	e.mu.Unlock()

	if !ok {
		typ := EventInitDiscarded
		if res.aborted {
			typ = EventInitAborted
		}
		e.emit(Event{Type: typ, PX: res.key.PX, PZ: res.key.PZ, Nodes: res.nodes, Tick: tick})
		return
	}
	e.emit(Event{Type: EventInitDone, PX: res.key.PX, PZ: res.key.PZ, Nodes: res.nodes, DurMs: res.dur.Milliseconds(), Tick: tick})
	e.syncBorders(res.key)
}

func (e *Engine) resumeDeferred(tick uint64) {
	if len(e.deferred) == 0 {
		return
	}
	keep := e.deferred[:0]
	for _, fr := range e.deferred {
		v := e.newWorldView()
		finished := e.resumeRetract(v, fr, e.cfg.RetractBudget)
		v.release()
		if finished {
			e.emit(Event{Type: EventRetractResumed, Channel: fr.ch.String(), Tick: tick})
		} else {
			keep = append(keep, fr)
		}
	}
	e.deferred = keep
}
