package indexdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteIndex is a secondary read-model of persisted partitions: which
// (px,pz) columns have a snapshot on disk, where, at which tick, and
// whether the light arrays were seeded. Writes go through a single
// writer goroutine so the simulation never blocks on the database.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan PartitionRow
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type PartitionRow struct {
	PX     int
	PZ     int
	Tick   uint64
	Path   string
	Digest uint64
	Seeded bool
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan PartitionRow, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS partitions (
			px INTEGER NOT NULL,
			pz INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			path TEXT NOT NULL,
			digest TEXT NOT NULL,
			seeded INTEGER NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (px, pz)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_partitions_tick ON partitions(tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordPartition queues an upsert; drops the row if the indexer falls
// behind, the snapshot files remain the source of truth.
func (s *SQLiteIndex) RecordPartition(row PartitionRow) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- row:
	default:
	}
}

func (s *SQLiteIndex) loop() {
	for row := range s.ch {
		_, err := s.db.Exec(
			`INSERT INTO partitions (px, pz, tick, path, digest, seeded, recorded_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(px, pz) DO UPDATE SET
			   tick=excluded.tick, path=excluded.path, digest=excluded.digest,
			   seeded=excluded.seeded, recorded_at=excluded.recorded_at;`,
			row.PX, row.PZ, row.Tick, row.Path,
			fmt.Sprintf("%016x", row.Digest), boolToInt(row.Seeded),
			time.Now().UTC().Format(time.RFC3339),
		)
		_ = err // indexing is best-effort
	}
}

// Partitions reads back every recorded row, ordered by key.
func (s *SQLiteIndex) Partitions() ([]PartitionRow, error) {
	rows, err := s.db.Query(`SELECT px, pz, tick, path, digest, seeded FROM partitions ORDER BY px, pz;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PartitionRow
	for rows.Next() {
		var r PartitionRow
		var digest string
		var seeded int
		if err := rows.Scan(&r.PX, &r.PZ, &r.Tick, &r.Path, &digest, &seeded); err != nil {
			return nil, err
		}
		_, _ = fmt.Sscanf(digest, "%016x", &r.Digest)
		r.Seeded = seeded != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// Flush blocks until queued rows at call time are written; test helper.
func (s *SQLiteIndex) Flush() {
	for len(s.ch) > 0 {
		time.Sleep(time.Millisecond)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
