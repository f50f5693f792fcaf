package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/quantum-chronometer/qchrono/sim"
	"github.com/quantum-chronometer/qchrono/sim/feed"
	"github.com/quantum-chronometer/qchrono/sim/peer"
	"github.com/quantum-chronometer/qchrono/sim/session"
	"github.com/quantum-chronometer/qchrono/sim/slots"
	"github.com/quantum-chronometer/qchrono/sim/telemetry"
	"github.com/quantum-chronometer/qchrono/sim/trace"
)

var (
	// CLI flags for the run command
	configPath   string        // YAML config file
	seed         int64         // Seed for superposition and variant draws
	logLevel     string        // Log verbosity level
	peerPort     int           // UDP port for distortion sharing
	noNetwork    bool          // Disable peer sync
	feedListen   string        // Feed listen address ("" disables)
	tickInterval time.Duration // Wall time between ticks
	tickDT       float64       // Simulated seconds per tick
	observe      bool          // Start with continuous observation on
	dbPath       string        // Save slot database
	restoreSlot  string        // Slot to load at startup
	autosaveSlot string        // Slot to save on shutdown
	loadFile     string        // Board document to load at startup
	saveOnExit   string        // Board document to write on shutdown
	traceLevel   string        // Session trace level
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "qchrono",
	Short: "Quantum chronometer: a toy time-dilation board shared over the LAN",
}

// runCmd ticks the board until interrupted
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the chronometer session",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := DefaultRunConfig()
		if configPath != "" {
			var err error
			cfg, err = LoadRunConfig(configPath, cfg)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		applyRunFlags(cmd, &cfg)

		// Set up logging
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", cfg.LogLevel)
		}
		logrus.SetLevel(level)

		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := runBoard(ctx, cfg); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// applyRunFlags copies explicitly set flags over the file config. Flags left
// at their defaults never overwrite file values.
func applyRunFlags(cmd *cobra.Command, cfg *RunConfig) {
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("log") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("port") {
		cfg.Peer.Port = peerPort
	}
	if flags.Changed("no-network") {
		cfg.Peer.Enabled = !noNetwork
	}
	if flags.Changed("listen") {
		cfg.Feed.Listen = feedListen
	}
	if flags.Changed("tick") {
		cfg.Tick.Interval = tickInterval
	}
	if flags.Changed("dt") {
		cfg.Tick.DT = tickDT
	}
	if flags.Changed("observe") {
		cfg.Tick.Observe = observe
	}
	if flags.Changed("db") {
		cfg.Slots.Path = dbPath
	}
	if flags.Changed("restore-slot") {
		cfg.Slots.Restore = restoreSlot
	}
	if flags.Changed("autosave-slot") {
		cfg.Slots.Autosave = autosaveSlot
	}
	if flags.Changed("trace-level") {
		cfg.Trace.Level = traceLevel
	}
}

// runBoard wires the chronometer to its collaborators and blocks until ctx
// is cancelled or a component fails.
func runBoard(ctx context.Context, cfg RunConfig) error {
	boardSeed := cfg.Seed
	if boardSeed == 0 {
		boardSeed = time.Now().UnixNano()
	}
	logrus.Infof("Starting chronometer with seed=%d, tick=%v, dt=%.3f", boardSeed, cfg.Tick.Interval, cfg.Tick.DT)

	chrono := sim.NewChronometer(sim.NewChronometerConfig(boardSeed))
	metrics := telemetry.New()

	var store *slots.Store
	if cfg.usesSlots() {
		var err error
		store, err = slots.Open(cfg.Slots.Path)
		if err != nil {
			return fmt.Errorf("opening save slots: %w", err)
		}
		defer func() { _ = store.Close() }()
	}

	if loadFile != "" {
		data, err := os.ReadFile(loadFile)
		if err != nil {
			return fmt.Errorf("reading board %s: %w", loadFile, err)
		}
		if err := chrono.Load(data); err != nil {
			return err
		}
	}
	if cfg.Slots.Restore != "" {
		data, err := store.Load(ctx, cfg.Slots.Restore)
		switch {
		case errors.Is(err, slots.ErrNotFound):
			logrus.Warnf("Save slot %q not found, starting with an empty board", cfg.Slots.Restore)
		case err != nil:
			return err
		default:
			if err := chrono.Load(data); err != nil {
				return err
			}
		}
	}

	deps := session.Deps{Metrics: metrics}
	var sessionTrace *trace.SessionTrace
	if tc := cfg.SessionTraceConfig(); tc.Level != "" && tc.Level != trace.TraceLevelNone {
		sessionTrace = trace.NewSessionTrace(tc)
		deps.Trace = sessionTrace
	}
	if cfg.Peer.Enabled {
		svc := peer.NewService(cfg.PeerServiceConfig(), chrono.SetExternalDistortion)
		if err := svc.Start(); err != nil {
			logrus.Warnf("Continuing without peer sync: %v", err)
		}
		defer func() { _ = svc.Stop() }()
		metrics.RegisterPeer(svc.Stats)
		deps.Peers = svc
	}

	sess := session.New(chrono, cfg.SessionConfig(), deps)
	sess.Input().SetObserving(cfg.Tick.Observe)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Feed.Listen != "" {
		hub := feed.NewHub(sess, metrics)
		sess.SetPublisher(hub)
		g.Go(func() error { return hub.Serve(gctx, cfg.Feed.Listen) })
	}
	g.Go(func() error { return sess.Run(gctx) })
	runErr := g.Wait()

	if cfg.Slots.Autosave != "" {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Save(saveCtx, cfg.Slots.Autosave, chrono.Save()); err != nil {
			logrus.Errorf("Autosave to slot %q failed: %v", cfg.Slots.Autosave, err)
		} else {
			logrus.Infof("Saved board to slot %q", cfg.Slots.Autosave)
		}
	}
	if saveOnExit != "" {
		if err := writeBoard(saveOnExit, chrono.Save()); err != nil {
			logrus.Errorf("%v", err)
		} else {
			logrus.Infof("Saved board to %s", saveOnExit)
		}
	}

	if sessionTrace != nil {
		logTraceSummary(trace.Summarize(sessionTrace))
	}
	logrus.Info("Chronometer stopped.")
	return runErr
}

func logTraceSummary(s *trace.TraceSummary) {
	logrus.WithFields(logrus.Fields{
		"ticks":          s.TotalTicks,
		"observed_ticks": s.ObservedTicks,
		"mean_aggregate": s.MeanAggregate,
		"min_aggregate":  s.MinAggregate,
		"max_aggregate":  s.MaxAggregate,
		"commands":       s.TotalCommands,
		"accepted":       s.AcceptedCount,
		"rejected":       s.RejectedCount,
		"dropped":        s.DroppedRecords,
	}).Info("Session trace summary")
	for kind, n := range s.CommandCounts {
		logrus.Debugf("  %s: %d", kind, n)
	}
}

func writeBoard(path string, doc sim.Document) error {
	data, err := sim.MarshalDocument(doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing board %s: %w", path, err)
	}
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	defaults := DefaultRunConfig()

	runCmd.Flags().StringVar(&configPath, "config", "", "YAML config file (flags override its values)")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for superposition draws (0 = wall clock)")
	runCmd.Flags().StringVar(&logLevel, "log", defaults.LogLevel, "Log level (trace, debug, info, warn, error, fatal, panic)")

	// Session cadence
	runCmd.Flags().DurationVar(&tickInterval, "tick", defaults.Tick.Interval, "Wall time between ticks")
	runCmd.Flags().Float64Var(&tickDT, "dt", defaults.Tick.DT, "Simulated seconds per tick")
	runCmd.Flags().BoolVar(&observe, "observe", false, "Start with continuous observation on")

	// Peer sync and feed
	runCmd.Flags().IntVar(&peerPort, "port", defaults.Peer.Port, "UDP port for distortion sharing")
	runCmd.Flags().BoolVar(&noNetwork, "no-network", false, "Disable peer distortion sharing")
	runCmd.Flags().StringVar(&feedListen, "listen", defaults.Feed.Listen, "Feed listen address (empty disables the feed)")

	// Persistence
	runCmd.Flags().StringVar(&dbPath, "db", defaults.Slots.Path, "Save slot database path")
	runCmd.Flags().StringVar(&restoreSlot, "restore-slot", "", "Save slot to load at startup")
	runCmd.Flags().StringVar(&autosaveSlot, "autosave-slot", "", "Save slot to write on shutdown")
	runCmd.Flags().StringVar(&loadFile, "load", "", "Board document to load at startup")
	runCmd.Flags().StringVar(&saveOnExit, "save-on-exit", "", "Board document to write on shutdown")

	// Tracing
	runCmd.Flags().StringVar(&traceLevel, "trace-level", defaults.Trace.Level, "Session trace level (none, commands, ticks); summary is logged on shutdown")

	rootCmd.AddCommand(runCmd)
}
