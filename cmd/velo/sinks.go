package main

import (
	"fmt"
	"io"
	"log"

	"velo.run/internal/persistence/runindex"
	"velo.run/internal/persistence/tracelog"
	"velo.run/internal/sail"
	"velo.run/internal/transport/observer"
)

// consoleSink renders snapshots as human-readable lines on stderr. Program
// output stays on stdout, so debug and trace runs pipe cleanly.
type consoleSink struct {
	w io.Writer
}

func (c consoleSink) Emit(s sail.Snapshot) error {
	line := fmt.Sprintf("cycle=%d pos=(%d,%d) dir=%s velocity=%d entropy=%d rune=%s lattice=%v",
		s.Cycle, s.Row, s.Col, s.Dir, s.Velocity, s.Entropy, s.Rune, s.Lattice)
	if len(s.Input) == 1 {
		line += fmt.Sprintf(" input=%d", s.Input[0])
	}
	if _, err := fmt.Fprintln(c.w, line); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}

// traceLogSink persists snapshots. Write failures are logged once and the
// sink goes quiet; a broken disk must not abort the program.
type traceLogSink struct {
	w      *tracelog.Writer
	log    *log.Logger
	failed bool
}

func (t *traceLogSink) Emit(s sail.Snapshot) error {
	if t.failed {
		return nil
	}
	if err := t.w.Append(s.Wire()); err != nil {
		t.failed = true
		t.log.Printf("trace log: %v (disabling for the rest of the run)", err)
	}
	return nil
}

// indexSink feeds the run index. RecordSnapshot is non-blocking and drops
// under backpressure, so this sink can never stall the engine.
type indexSink struct {
	db    *runindex.DB
	runID int64
}

func (i indexSink) Emit(s sail.Snapshot) error {
	i.db.RecordSnapshot(i.runID, s.Wire())
	return nil
}

// observerSink fans snapshots out to local websocket observers.
type observerSink struct {
	srv *observer.Server
}

func (o observerSink) Emit(s sail.Snapshot) error {
	o.srv.Publish(s.Wire())
	return nil
}
