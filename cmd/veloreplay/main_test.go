package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"velo.run/internal/lang"
	"velo.run/internal/protocol"
	"velo.run/internal/sail"
)

const echoProgram = ">,.v\n^  <\n"

type recordSink struct {
	entries []protocol.TraceEntry
}

func (r *recordSink) Emit(s sail.Snapshot) error {
	r.entries = append(r.entries, s.Wire())
	return nil
}

func recordRun(t *testing.T, program, input string) []protocol.TraceEntry {
	t.Helper()
	cosmos, err := lang.BuildCosmos(program)
	if err != nil {
		t.Fatalf("build cosmos: %v", err)
	}
	vessel := lang.NewVessel(cosmos.Get(0, 0))
	rec := &recordSink{}
	cfg := sail.Config{Mode: sail.ModeTrace}
	if _, err := sail.Sail(cosmos, vessel, cfg, strings.NewReader(input), io.Discard, rec); err != nil {
		t.Fatalf("record run: %v", err)
	}
	return rec.entries
}

func replay(t *testing.T, program string, v *verifier) error {
	t.Helper()
	cosmos, err := lang.BuildCosmos(program)
	if err != nil {
		t.Fatalf("build cosmos: %v", err)
	}
	vessel := lang.NewVessel(cosmos.Get(0, 0))
	cfg := sail.Config{Mode: sail.ModeTrace}
	if _, err := sail.Sail(cosmos, vessel, cfg, v.input(), io.Discard, v); err != nil {
		return err
	}
	return v.finish()
}

func TestVerifier_CleanReplay(t *testing.T) {
	entries := recordRun(t, echoProgram, "hi")
	if len(entries) == 0 {
		t.Fatalf("record run produced no entries")
	}
	v := newVerifier(entries)
	if !bytes.Equal(v.inBytes, []byte("hi")) {
		t.Fatalf("recovered input: got %q want %q", v.inBytes, "hi")
	}
	if err := replay(t, echoProgram, v); err != nil {
		t.Fatalf("clean replay diverged: %v", err)
	}
}

func TestVerifier_DetectsTamperedDigest(t *testing.T) {
	entries := recordRun(t, echoProgram, "x")
	entries[len(entries)-1].Digest = strings.Repeat("0", 64)
	if err := replay(t, echoProgram, newVerifier(entries)); err == nil {
		t.Fatalf("expected tampered digest to diverge")
	}
}

func TestVerifier_ReportsUnreachedCycle(t *testing.T) {
	entries := recordRun(t, echoProgram, "x")
	extra := entries[len(entries)-1]
	extra.Cycle = 9999
	entries = append(entries, extra)
	if err := replay(t, echoProgram, newVerifier(entries)); err == nil {
		t.Fatalf("expected the phantom cycle to be reported")
	}
}

func TestVerifier_IgnoresUnrecordedCycles(t *testing.T) {
	// A debug-mode trace records only some cycles; the replay still runs
	// every cycle and must not flag the gaps.
	entries := recordRun(t, echoProgram, "ab")
	sparse := entries[:0]
	for i, e := range entries {
		if i%2 == 0 {
			sparse = append(sparse, e)
		}
	}
	if err := replay(t, echoProgram, newVerifier(sparse)); err != nil {
		t.Fatalf("sparse replay diverged: %v", err)
	}
}
