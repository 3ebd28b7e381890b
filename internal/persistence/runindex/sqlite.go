// Package runindex keeps a queryable SQLite index of runs and their
// snapshots. It is a secondary read model: trace logs remain the source of
// truth, and indexing failures never affect a run.
package runindex

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"velo.run/internal/protocol"
)

type DB struct {
	db *sql.DB

	ch   chan snapshotRow
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type snapshotRow struct {
	RunID    int64
	Cycle    uint64
	Row, Col int
	Dir      string
	Velocity uint32
	Entropy  uint32
	Rune     string
	Digest   string

	// Flush marker: when set, the writer closes it instead of inserting.
	flushed chan struct{}
}

// RunRecord is one finished run as stored in the index.
type RunRecord struct {
	ID           int64
	Program      string
	SourceDigest string
	Mode         string
	StartedAt    string
	FinishedAt   string
	Termination  string
	Cycles       uint64
	OutputBytes  int64
}

func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
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

	d := &DB{
		db: db,
		// Generous buffer: trace mode can snapshot every cycle.
		ch: make(chan snapshotRow, 65536),
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()
	return d, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only write pattern; NORMAL is enough durability
	// for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
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
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			program TEXT NOT NULL,
			source_digest TEXT NOT NULL,
			mode TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			termination TEXT,
			cycles INTEGER NOT NULL DEFAULT 0,
			output_bytes INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source_digest, started_at);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			run_id INTEGER NOT NULL,
			cycle INTEGER NOT NULL,
			row INTEGER NOT NULL,
			col INTEGER NOT NULL,
			dir TEXT NOT NULL,
			velocity INTEGER NOT NULL,
			entropy INTEGER NOT NULL,
			rune TEXT NOT NULL,
			digest TEXT NOT NULL,
			PRIMARY KEY (run_id, cycle)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	if _, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	return nil
}

func (d *DB) Close() error {
	var err error
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
		err = d.db.Close()
	})
	return err
}

// BeginRun registers a run and returns its id for later snapshot rows.
func (d *DB) BeginRun(program, sourceDigest, mode string) (int64, error) {
	res, err := d.db.Exec(
		`INSERT INTO runs(program,source_digest,mode,started_at) VALUES(?,?,?,?)`,
		program, sourceDigest, mode, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinishRun records the outcome. The termination code must be one of the
// protocol codes.
func (d *DB) FinishRun(runID int64, termination string, cycles uint64, outputBytes int64) error {
	if !protocol.IsKnownTermination(termination) {
		return fmt.Errorf("unknown termination code: %q", termination)
	}
	_, err := d.db.Exec(
		`UPDATE runs SET finished_at=?, termination=?, cycles=?, output_bytes=? WHERE id=?`,
		time.Now().UTC().Format(time.RFC3339Nano), termination, cycles, outputBytes, runID,
	)
	return err
}

// RecordSnapshot queues a snapshot row. Drops under backpressure so the
// engine never stalls on the index.
func (d *DB) RecordSnapshot(runID int64, e protocol.TraceEntry) {
	if d == nil || d.closed.Load() {
		return
	}
	r := snapshotRow{
		RunID:    runID,
		Cycle:    e.Cycle,
		Row:      e.Pos[0],
		Col:      e.Pos[1],
		Dir:      e.Dir,
		Velocity: e.Velocity,
		Entropy:  e.Entropy,
		Rune:     e.Rune,
		Digest:   e.Digest,
	}
	select {
	case d.ch <- r:
	default:
	}
}

// Run loads one run row by id.
func (d *DB) Run(runID int64) (RunRecord, error) {
	var r RunRecord
	var finished, termination sql.NullString
	err := d.db.QueryRow(
		`SELECT id,program,source_digest,mode,started_at,finished_at,termination,cycles,output_bytes FROM runs WHERE id=?`,
		runID,
	).Scan(&r.ID, &r.Program, &r.SourceDigest, &r.Mode, &r.StartedAt, &finished, &termination, &r.Cycles, &r.OutputBytes)
	if err != nil {
		return r, err
	}
	r.FinishedAt = finished.String
	r.Termination = termination.String
	return r, nil
}

// SnapshotCount reports how many snapshot rows a run has.
func (d *DB) SnapshotCount(runID int64) (int64, error) {
	var n int64
	err := d.db.QueryRow(`SELECT COUNT(*) FROM snapshots WHERE run_id=?`, runID).Scan(&n)
	return n, err
}

// Flush blocks until every snapshot row queued before the call has been
// written. Intended for run teardown and tests.
func (d *DB) Flush() {
	if d == nil || d.closed.Load() {
		return
	}
	done := make(chan struct{})
	d.ch <- snapshotRow{flushed: done}
	<-done
}

func (d *DB) loop() {
	insert, err := d.db.Prepare(
		`INSERT OR REPLACE INTO snapshots(run_id,cycle,row,col,dir,velocity,entropy,rune,digest) VALUES(?,?,?,?,?,?,?,?,?)`,
	)
	for r := range d.ch {
		if r.flushed != nil {
			close(r.flushed)
			continue
		}
		if err != nil {
			// The index is best-effort: keep draining so senders never stall.
			continue
		}
		_, _ = insert.Exec(r.RunID, r.Cycle, r.Row, r.Col, r.Dir, r.Velocity, r.Entropy, r.Rune, r.Digest)
	}
	if insert != nil {
		_ = insert.Close()
	}
}
