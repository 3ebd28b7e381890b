package main

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"velo.run/internal/lang"
	"velo.run/internal/persistence/runindex"
	"velo.run/internal/persistence/tracelog"
	"velo.run/internal/protocol"
	"velo.run/internal/runner"
	"velo.run/internal/sail"
	"velo.run/internal/transport/observer"
)

// Exit codes. Each termination reason maps to a distinct status so callers
// can tell them apart without parsing stderr.
const (
	exitOK                = 0  // velocity exhausted (normal halt)
	exitError             = 1  // load or host I/O failure
	exitUsage             = 2  // bad command line
	exitNoSignal          = 10 // vessel left the cosmos
	exitNoInitialVelocity = 11 // origin was not a Thrust rune
	exitInputExhausted    = 12 // input ran dry under the halt EOF policy
	exitCycleBudget       = 13 // host cycle budget tripped
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "", "path to velo.yaml (optional)")
		debug      = flag.Bool("debug", false, "snapshot state after each Debug rune impact")
		trace      = flag.Bool("trace", false, "snapshot state after every cycle")
		ignoreVoid = flag.Bool("ignore_void", false, "with -trace: skip snapshots for Void impacts")
		inputPath  = flag.String("input", "", "read program input from file instead of stdin")
		eofPolicy  = flag.String("eof", "", "input EOF policy: halt or zero (default from config)")
		maxCycles  = flag.Uint64("max_cycles", 0, "cycle budget safety net, 0 = unbounded (default from config)")
		pace       = flag.Duration("pace", 0, "delay per cycle for live observing (default from config)")
		traceLog   = flag.Bool("trace_log", false, "persist snapshots to a compressed trace log")
		dbEnabled  = flag.Bool("db", false, "record the run in the run index")
		observeOn  = flag.Bool("observe", false, "serve the local websocket observer during the run")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		return exitUsage
	}
	if *debug && *trace {
		fmt.Fprintln(os.Stderr, "-debug and -trace are mutually exclusive")
		return exitUsage
	}
	if *ignoreVoid && !*trace {
		fmt.Fprintln(os.Stderr, "-ignore_void requires -trace")
		return exitUsage
	}

	logger := log.New(os.Stderr, "[velo] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := runner.Load(*configPath)
	if err != nil {
		logger.Printf("load config: %v", err)
		return exitError
	}
	if *eofPolicy != "" {
		cfg.EOFPolicy = *eofPolicy
	}
	if *maxCycles > 0 {
		cfg.MaxCycles = *maxCycles
	}
	if *traceLog {
		cfg.TraceLog.Enabled = true
	}
	if *dbEnabled {
		cfg.Index.Enabled = true
	}
	if *observeOn {
		cfg.Observer.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		logger.Printf("config: %v", err)
		return exitError
	}
	paceDur, _ := cfg.PaceDuration()
	if *pace > 0 {
		paceDur = *pace
	}

	programPath := flag.Arg(0)
	source, err := os.ReadFile(programPath)
	if err != nil {
		logger.Printf("load velo file: %v", err)
		return exitError
	}
	sum := sha256.Sum256(source)
	sourceDigest := hex.EncodeToString(sum[:])

	cosmos, err := lang.BuildCosmos(string(source))
	if err != nil {
		if errors.Is(err, lang.ErrEmptyCosmos) {
			logger.Printf("%s holds no runes after comment stripping", programPath)
		} else {
			logger.Printf("build cosmos: %v", err)
		}
		return exitError
	}
	vessel := lang.NewVessel(cosmos.Get(0, 0))

	mode := sail.ModeSilent
	switch {
	case *trace:
		mode = sail.ModeTrace
	case *debug:
		mode = sail.ModeDebug
	}

	engineCfg := sail.Config{
		Mode:       mode,
		IgnoreVoid: *ignoreVoid,
		MaxCycles:  cfg.MaxCycles,
		Pace:       paceDur,
	}
	if cfg.EOFPolicy == "zero" {
		engineCfg.EOF = sail.EOFZero
	}

	var in io.ByteReader
	if *inputPath != "" {
		f, err := os.Open(*inputPath)
		if err != nil {
			logger.Printf("open input: %v", err)
			return exitError
		}
		defer f.Close()
		in = bufio.NewReader(f)
	} else {
		in = bufio.NewReader(os.Stdin)
	}

	out := &countingWriter{w: os.Stdout}

	rt, err := setupSinks(sinkSetup{
		Cfg:          cfg,
		Mode:         mode,
		Program:      programPath,
		SourceDigest: sourceDigest,
		Cosmos:       cosmos,
		Logger:       logger,
	})
	if err != nil {
		logger.Printf("setup instrumentation: %v", err)
		return exitError
	}

	res, runErr := sail.Sail(cosmos, vessel, engineCfg, in, out, rt.Sinks...)

	rt.Finish(res, out.n)

	if runErr != nil {
		logger.Printf("run: %v", runErr)
		return exitError
	}

	switch res.Termination {
	case sail.VelocityExhausted:
		return exitOK
	case sail.NoSignal:
		logger.Printf("the vessel traveled out of the cosmos; last signal coordinate row=%d col=%d after %d cycles", res.Row, res.Col, res.Cycles)
		return exitNoSignal
	case sail.NoInitialVelocityOrDirection:
		logger.Printf("no Thrust rune at the top left corner of the cosmos")
		return exitNoInitialVelocity
	case sail.InputExhausted:
		logger.Printf("input exhausted at row=%d col=%d after %d cycles", res.Row, res.Col, res.Cycles)
		return exitInputExhausted
	case sail.CycleBudgetExceeded:
		logger.Printf("cycle budget of %d exceeded", cfg.MaxCycles)
		return exitCycleBudget
	}
	return exitError
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: velo [flags] <program.velo>\n\nflags:\n")
	flag.PrintDefaults()
}

// countingWriter counts program output bytes for the run index.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// sinkSetup carries everything needed to assemble the instrumentation side
// of a run.
type sinkSetup struct {
	Cfg          runner.Config
	Mode         sail.Mode
	Program      string
	SourceDigest string
	Cosmos       *lang.Cosmos
	Logger       *log.Logger
}

type sinkRuntime struct {
	Sinks []sail.Sink

	logger   *log.Logger
	trace    *tracelog.Writer
	index    *runindex.DB
	runID    int64
	obs      *observer.Server
	httpSrv  *http.Server
	httpDone chan struct{}
}

func setupSinks(s sinkSetup) (*sinkRuntime, error) {
	rt := &sinkRuntime{logger: s.Logger}

	if s.Mode != sail.ModeSilent {
		rt.Sinks = append(rt.Sinks, consoleSink{w: os.Stderr})
	}

	if s.Cfg.TraceLog.Enabled {
		w, err := tracelog.NewWriter(s.Cfg.TraceLog.Dir)
		if err != nil {
			return nil, fmt.Errorf("trace log: %w", err)
		}
		rt.trace = w
		rt.Sinks = append(rt.Sinks, &traceLogSink{w: w, log: s.Logger})
		s.Logger.Printf("trace log: %s", w.Path())
	}

	if s.Cfg.Index.Enabled {
		db, err := runindex.Open(s.Cfg.Index.Path)
		if err != nil {
			rt.teardown()
			return nil, fmt.Errorf("run index: %w", err)
		}
		runID, err := db.BeginRun(s.Program, s.SourceDigest, s.Mode.String())
		if err != nil {
			_ = db.Close()
			rt.teardown()
			return nil, fmt.Errorf("run index: %w", err)
		}
		rt.index = db
		rt.runID = runID
		rt.Sinks = append(rt.Sinks, indexSink{db: db, runID: runID})
	}

	if s.Cfg.Observer.Enabled {
		boot := protocol.BootstrapResponse{
			ProtocolVersion: protocol.Version,
			Program:         s.Program,
			SourceDigest:    s.SourceDigest,
			Width:           s.Cosmos.Width(),
			Height:          s.Cosmos.Height(),
			Mode:            s.Mode.String(),
		}
		rt.obs = observer.NewServer(boot, s.Logger)
		rt.Sinks = append(rt.Sinks, observerSink{srv: rt.obs})

		mux := http.NewServeMux()
		mux.HandleFunc("/v1/observer/bootstrap", rt.obs.BootstrapHandler())
		mux.HandleFunc("/v1/observer/ws", rt.obs.WSHandler())
		rt.httpSrv = &http.Server{Addr: s.Cfg.Observer.Listen, Handler: mux}
		rt.httpDone = make(chan struct{})
		go func() {
			defer close(rt.httpDone)
			if err := rt.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.Logger.Printf("observer: %v", err)
			}
		}()
		s.Logger.Printf("observer listening on %s", s.Cfg.Observer.Listen)
	}

	return rt, nil
}

// Finish flushes and closes every instrumentation destination and records
// the run outcome in the index.
func (rt *sinkRuntime) Finish(res sail.Result, outputBytes int64) {
	if rt.index != nil {
		rt.index.Flush()
		if err := rt.index.FinishRun(rt.runID, res.Termination.Code(), res.Cycles, outputBytes); err != nil {
			rt.logger.Printf("run index: %v", err)
		}
	}
	rt.teardown()
}

func (rt *sinkRuntime) teardown() {
	if rt.trace != nil {
		if err := rt.trace.Close(); err != nil {
			rt.logger.Printf("trace log: %v", err)
		}
		rt.trace = nil
	}
	if rt.index != nil {
		_ = rt.index.Close()
		rt.index = nil
	}
	if rt.obs != nil {
		rt.obs.Shutdown()
		rt.obs = nil
	}
	if rt.httpSrv != nil {
		_ = rt.httpSrv.Close()
		<-rt.httpDone
		rt.httpSrv = nil
	}
}
