package world

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"voxelglow.dev/internal/persistence/indexdb"
	snapv1 "voxelglow.dev/internal/persistence/snapshot"
	"voxelglow.dev/internal/sim/catalogs"
	"voxelglow.dev/internal/sim/tuning"
	"voxelglow.dev/internal/sim/world/light"
	lightstore "voxelglow.dev/internal/sim/world/light/store"
	"voxelglow.dev/internal/sim/world/logic/grid"
	"voxelglow.dev/internal/sim/world/terrain/gen"
	terrain "voxelglow.dev/internal/sim/world/terrain/store"
)

type Config struct {
	WorldID string
	Tuning  tuning.Tuning

	// DataDir enables persistence when non-empty.
	DataDir string

	Sink light.EventSink

	// Index, when set, records persisted partitions for offline
	// inspection; writes are best-effort.
	Index *indexdb.SQLiteIndex

	// Generate fills fresh partitions with demo terrain instead of
	// leaving them all air.
	Generate bool
}

// World ties the terrain store, the light engine and persistence
// together behind a single owner-goroutine API. Every method except
// QueryLight must be called from the goroutine driving Step.
type World struct {
	cfg    Config
	cats   *catalogs.Catalogs
	bounds grid.Bounds

	terrain *terrain.Store
	engine  *light.Engine
	gen     *gen.Generator

	// Read by connection goroutines, advanced only by the owner.
	tick   atomic.Uint64
	loaded atomic.Int64
}

func New(cfg Config, cats *catalogs.Catalogs) (*World, error) {
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, err
	}
	bounds := grid.Bounds{FloorY: cfg.Tuning.WorldFloorY, CeilY: cfg.Tuning.WorldCeilY}

	w := &World{
		cfg:     cfg,
		cats:    cats,
		bounds:  bounds,
		terrain: terrain.New(bounds, &cats.Materials),
	}
	w.engine = light.New(light.Config{
		Bounds:        bounds,
		RetractBudget: cfg.Tuning.RetractBudget,
		Workers:       cfg.Tuning.InitWorkers,
	}, &cats.Materials, cfg.Sink)
	if cfg.Generate {
		w.gen = gen.New(cfg.Tuning.Terrain, &cats.Materials)
	}
	return w, nil
}

func (w *World) Close() error {
	var firstErr error
	if w.cfg.DataDir != "" {
		for _, key := range w.terrain.LoadedKeys() {
			if err := w.SavePartition(key); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	w.engine.Close()
	return firstErr
}

// LoadPartition makes a partition resident. With persistence enabled it
// restores the snapshot from disk; a seeded snapshot is adopted
// directly, an unseeded or corrupt one goes through the full init
// pipeline. Idempotent for already loaded partitions.
func (w *World) LoadPartition(key grid.PartitionKey) error {
	if w.terrain.Loaded(key) {
		return nil
	}
	if w.cfg.DataDir != "" {
		done, err := w.restorePartition(key)
		if err != nil {
			return err
		}
		if done {
			w.loaded.Add(1)
			return nil
		}
	}

	p := w.terrain.Load(key)
	if w.gen != nil {
		w.gen.Populate(w.terrain, key)
	}
	w.engine.OnPartitionLoaded(key, p)
	w.loaded.Add(1)
	return nil
}

// restorePartition returns done=true when the partition was loaded from
// disk. A missing snapshot falls through to fresh generation; a corrupt
// one discards the stored light and re-inits from the materials.
func (w *World) restorePartition(key grid.PartitionKey) (bool, error) {
	path := snapv1.PartitionPath(w.cfg.DataDir, key.PX, key.PZ)
	snap, err := snapv1.ReadPartition(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		if errors.Is(err, snapv1.ErrCorrupt) {
			w.emitRecovered(key)
			return false, nil
		}
		return false, err
	}
	if err := snap.Validate(w.bounds.FloorY, w.bounds.CeilY); err != nil {
		w.emitRecovered(key)
		return false, nil
	}

	mats := make([][]uint16, len(snap.Sections))
	for i := range snap.Sections {
		mats[i] = snap.Sections[i].Materials
	}
	p := w.terrain.ImportSections(key, mats)

	if !snap.Seeded {
		w.engine.OnPartitionLoaded(key, p)
		return true, nil
	}
	pl, err := lightstore.ImportLight(key, w.bounds, &snap)
	if err != nil {
		// Materials survived but the light arrays did not; rebuild them.
		w.emitRecovered(key)
		w.engine.OnPartitionLoaded(key, p)
		return true, nil
	}
	w.engine.AdoptPersisted(key, p, pl)
	return true, nil
}

func (w *World) emitRecovered(key grid.PartitionKey) {
	if w.cfg.Sink != nil {
		w.cfg.Sink.LightEvent(light.Event{
			Type: light.EventSnapshotRecovered,
			PX:   key.PX, PZ: key.PZ, Tick: w.tick.Load(),
		})
	}
}

// UnloadPartition persists the partition when a data dir is configured,
// then releases it. In-flight init work is cancelled and discarded.
func (w *World) UnloadPartition(key grid.PartitionKey) error {
	if !w.terrain.Loaded(key) {
		return nil
	}
	var saveErr error
	if w.cfg.DataDir != "" {
		saveErr = w.SavePartition(key)
	}
	w.engine.OnPartitionUnloaded(key)
	w.terrain.Unload(key)
	w.loaded.Add(-1)
	return saveErr
}

// SavePartition writes one partition snapshot. Partitions still
// initializing persist materials only, marked unseeded.
func (w *World) SavePartition(key grid.PartitionKey) error {
	p := w.terrain.Partition(key)
	if p == nil {
		return fmt.Errorf("partition %d,%d not loaded", key.PX, key.PZ)
	}
	snap := snapv1.PartitionV1{
		Header: snapv1.Header{Version: snapv1.Version, WorldID: w.cfg.WorldID, Tick: w.tick.Load()},
		PX:     key.PX, PZ: key.PZ,
		FloorY: w.bounds.FloorY, CeilY: w.bounds.CeilY,
	}
	mats := p.ExportSections()
	snap.Sections = make([]snapv1.SectionV1, len(mats))
	for i := range mats {
		snap.Sections[i].Materials = mats[i]
	}

	var digest uint64
	if pl := w.engine.Snapshot(key); pl != nil {
		pl.Mu.RLock()
		pl.Export(&snap)
		digest = pl.Digest()
		pl.Mu.RUnlock()
	}

	path := snapv1.PartitionPath(w.cfg.DataDir, key.PX, key.PZ)
	if err := snapv1.WritePartition(path, snap); err != nil {
		return err
	}
	if w.cfg.Index != nil {
		w.cfg.Index.RecordPartition(indexdb.PartitionRow{
			PX: key.PX, PZ: key.PZ,
			Tick: w.tick.Load(), Path: path,
			Digest: digest, Seeded: snap.Seeded,
		})
	}
	return nil
}

// SetMaterial applies a single-voxel edit: the terrain store first,
// then the light update. Edits against partitions that are absent or
// still initializing are rejected before any state changes.
func (w *World) SetMaterial(pos grid.Vec3i, id uint16) error {
	if !w.bounds.InRange(pos.Y) {
		return light.ErrNotLoaded
	}
	key := grid.KeyFor(pos)
	if !w.terrain.Loaded(key) {
		return light.ErrNotLoaded
	}
	if !w.engine.Ready(key) {
		return light.ErrUninitialized
	}
	old, ok := w.terrain.SetMaterial(pos, id)
	if !ok {
		return light.ErrNotLoaded
	}
	if old == id {
		return nil
	}
	return w.engine.OnMaterialChanged(pos, old, id)
}

// QueryLight is safe from any goroutine.
func (w *World) QueryLight(pos grid.Vec3i, ch lightstore.Channel) (uint8, error) {
	return w.engine.QueryLight(pos, ch)
}

func (w *World) Material(pos grid.Vec3i) (uint16, bool) {
	return w.terrain.GetMaterial(pos)
}

// Step advances one tick: publishes finished background inits, resumes
// deferred retraction frontiers, and runs the periodic snapshot pass.
func (w *World) Step() {
	tick := w.tick.Add(1)
	w.engine.Tick(tick)

	every := uint64(w.cfg.Tuning.SnapshotEveryTicks)
	if w.cfg.DataDir != "" && every > 0 && tick%every == 0 {
		for _, key := range w.terrain.LoadedKeys() {
			_ = w.SavePartition(key)
		}
	}
}

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) ID() string { return w.cfg.WorldID }

func (w *World) TickRateHz() int { return w.cfg.Tuning.TickRateHz }

func (w *World) Ready(key grid.PartitionKey) bool { return w.engine.Ready(key) }

func (w *World) LoadedKeys() []grid.PartitionKey { return w.terrain.LoadedKeys() }

// LoadedCount is safe from any goroutine; everything else about
// residency belongs to the owner.
func (w *World) LoadedCount() int64 { return w.loaded.Load() }

func (w *World) Bounds() grid.Bounds { return w.bounds }

func (w *World) Catalogs() *catalogs.Catalogs { return w.cats }
