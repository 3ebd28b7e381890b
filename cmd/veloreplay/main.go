// veloreplay re-executes a program against a recorded trace log and checks
// that every recorded state digest matches the fresh run. A clean replay is
// evidence the interpreter is deterministic and the log is intact.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"sort"

	"velo.run/internal/lang"
	"velo.run/internal/persistence/tracelog"
	"velo.run/internal/protocol"
	"velo.run/internal/runner"
	"velo.run/internal/sail"
	"velo.run/internal/sail/encoding"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "", "path to velo.yaml (optional)")
		tracePath  = flag.String("trace", "", "trace file to verify (default: newest in the configured trace dir)")
		eofPolicy  = flag.String("eof", "halt", "input EOF policy the original run used: halt or zero")
		maxCycles  = flag.Uint64("max_cycles", 0, "cycle budget for the replay, 0 = unbounded")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: veloreplay [flags] <program.velo>\n\nflags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := log.New(os.Stderr, "[veloreplay] ", log.LstdFlags|log.Lmicroseconds)

	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}
	if *eofPolicy != "halt" && *eofPolicy != "zero" {
		fmt.Fprintln(os.Stderr, "-eof must be halt or zero")
		return 2
	}

	cfg, err := runner.Load(*configPath)
	if err != nil {
		logger.Printf("load config: %v", err)
		return 1
	}

	path := *tracePath
	if path == "" {
		files, err := tracelog.ListFiles(cfg.TraceLog.Dir)
		if err != nil {
			logger.Printf("list traces in %s: %v", cfg.TraceLog.Dir, err)
			return 1
		}
		if len(files) == 0 {
			logger.Printf("no trace files under %s", cfg.TraceLog.Dir)
			return 1
		}
		path = files[len(files)-1]
	}

	entries, err := tracelog.ReadFile(path)
	if err != nil {
		logger.Printf("read trace: %v", err)
		return 1
	}
	if len(entries) == 0 {
		logger.Printf("%s is empty, nothing to verify", path)
		return 1
	}

	source, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		logger.Printf("load velo file: %v", err)
		return 1
	}
	cosmos, err := lang.BuildCosmos(string(source))
	if err != nil {
		logger.Printf("build cosmos: %v", err)
		return 1
	}
	vessel := lang.NewVessel(cosmos.Get(0, 0))

	v := newVerifier(entries)

	engineCfg := sail.Config{Mode: sail.ModeTrace, MaxCycles: *maxCycles}
	if *eofPolicy == "zero" {
		engineCfg.EOF = sail.EOFZero
	}

	res, runErr := sail.Sail(cosmos, vessel, engineCfg, v.input(), io.Discard, v)
	if runErr != nil {
		logger.Printf("replay diverged: %v", runErr)
		return 1
	}

	if err := v.finish(); err != nil {
		logger.Printf("replay diverged: %v", err)
		return 1
	}

	logger.Printf("ok: %s verified, %d recorded snapshots matched, run ended with %s after %d cycles",
		path, len(entries), res.Termination, res.Cycles)
	return 0
}

// verifier is a snapshot sink that compares the fresh run against the
// recorded trace. Recorded input bytes are fed back into the replay in
// cycle order, so the replay sees the same bytes the original run consumed.
type verifier struct {
	byCycle map[uint64]protocol.TraceEntry
	matched map[uint64]bool
	inBytes []byte
}

func newVerifier(entries []protocol.TraceEntry) *verifier {
	v := &verifier{
		byCycle: make(map[uint64]protocol.TraceEntry, len(entries)),
		matched: make(map[uint64]bool, len(entries)),
	}
	sorted := make([]protocol.TraceEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Cycle < sorted[j].Cycle })
	for _, e := range sorted {
		v.byCycle[e.Cycle] = e
		if e.Input != nil {
			v.inBytes = append(v.inBytes, byte(*e.Input))
		}
	}
	return v
}

func (v *verifier) input() io.ByteReader {
	return bytes.NewReader(v.inBytes)
}

func (v *verifier) Emit(s sail.Snapshot) error {
	e, ok := v.byCycle[s.Cycle]
	if !ok {
		// The original run may have traced with ignore_void or in debug
		// mode; cycles it never recorded have nothing to compare against.
		return nil
	}
	if e.Digest != s.Digest {
		return fmt.Errorf("cycle %d: digest %s recorded, %s replayed", s.Cycle, e.Digest, s.Digest)
	}
	if e.Rune != s.Rune.String() {
		return fmt.Errorf("cycle %d: rune %s recorded, %s replayed", s.Cycle, e.Rune, s.Rune)
	}
	recorded, err := encoding.DecodeRLE(e.LatticeRLE)
	if err != nil {
		return fmt.Errorf("cycle %d: recorded lattice: %w", s.Cycle, err)
	}
	if !slices.Equal(recorded, s.Lattice) {
		return fmt.Errorf("cycle %d: lattice %v recorded, %v replayed", s.Cycle, recorded, s.Lattice)
	}
	v.matched[s.Cycle] = true
	return nil
}

func (v *verifier) finish() error {
	for cycle := range v.byCycle {
		if !v.matched[cycle] {
			return fmt.Errorf("recorded cycle %d was never reached by the replay", cycle)
		}
	}
	return nil
}
