package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"owninfer/internal/config"
	"owninfer/internal/prof"
	"owninfer/internal/trace"
)

// skipSetup marks commands that need neither a config nor a tracer.
const skipSetup = "skip-setup"

var (
	cliConfig  config.Config
	cleanupRun = func() {}
)

// setupRun loads the configuration for the unit named by the first
// argument and starts tracing. Flags override the file.
func setupRun(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipSetup] != "" {
		return nil
	}
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	cliConfig = cfg
	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	stopTracing, err := setupTracing(cmd, cfg.Trace)
	if err != nil {
		stopProfiling()
		return err
	}
	cleanupRun = func() {
		stopTracing()
		stopProfiling()
	}
	return nil
}

// setupProfiling starts the profilers named by the profiling flags and
// returns the function that stops them.
func setupProfiling(cmd *cobra.Command) (func(), error) {
	flags := cmd.Root().PersistentFlags()
	var opts prof.Options
	var err error
	if opts.CPU, err = flags.GetString("cpu-profile"); err != nil {
		return nil, fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	if opts.Mem, err = flags.GetString("mem-profile"); err != nil {
		return nil, fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	if opts.Trace, err = flags.GetString("runtime-trace"); err != nil {
		return nil, fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	if !opts.Enabled() {
		return func() {}, nil
	}
	session, err := prof.Start(opts)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := session.Stop(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "profiling: %v\n", err)
		}
	}, nil
}

func loadConfig(cmd *cobra.Command, args []string) (config.Config, error) {
	flags := cmd.Root().PersistentFlags()
	path, err := flags.GetString("config")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	var cfg config.Config
	switch {
	case path != "":
		cfg, err = config.Load(path)
	case len(args) > 0:
		cfg, err = config.Discover(filepath.Dir(args[0]))
	default:
		cfg, err = config.Discover(".")
	}
	if err != nil {
		return config.Config{}, err
	}

	if flags.Changed("jobs") {
		if cfg.Driver.Jobs, err = flags.GetInt("jobs"); err != nil {
			return config.Config{}, fmt.Errorf("failed to get jobs flag: %w", err)
		}
	}
	if flags.Changed("max-diagnostics") {
		if cfg.Driver.MaxDiagnostics, err = flags.GetInt("max-diagnostics"); err != nil {
			return config.Config{}, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
		}
	}
	if flags.Changed("unknown-callee") {
		v, err := flags.GetString("unknown-callee")
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to get unknown-callee flag: %w", err)
		}
		cfg.Policy.UnknownCallee = config.CalleePolicy(v)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupTracing initializes the tracer from the trace flags, falling back to
// the [trace] section of the config. It returns a cleanup function.
func setupTracing(cmd *cobra.Command, tc config.TraceConfig) (func(), error) {
	flags := cmd.Root().PersistentFlags()

	traceOutput, err := flags.GetString("trace")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace flag: %w", err)
	}
	if !flags.Changed("trace") {
		traceOutput = tc.Output
	}

	levelStr, err := flags.GetString("trace-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-level flag: %w", err)
	}
	if !flags.Changed("trace-level") {
		levelStr = tc.Level
	}

	modeStr, err := flags.GetString("trace-mode")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
	}
	if !flags.Changed("trace-mode") {
		modeStr = tc.Mode
	}

	formatStr, err := flags.GetString("trace-format")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-format flag: %w", err)
	}
	if !flags.Changed("trace-format") && tc.Format != "" {
		formatStr = tc.Format
	}

	ringSize, err := flags.GetInt("trace-ring-size")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}

	heartbeatInterval, err := flags.GetDuration("trace-heartbeat")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}
	if !flags.Changed("trace-heartbeat") {
		heartbeatInterval = tc.Heartbeat.Duration
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace level: %w", err)
	}

	// An output without a level traces driver and pass boundaries.
	if level == trace.LevelOff && traceOutput != "" {
		level = trace.LevelPhase
	}
	if level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func() {}, nil
	}

	mode, err := trace.ParseMode(modeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace mode: %w", err)
	}
	format, err := trace.ParseFormat(formatStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trace format: %w", err)
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: traceOutput,
		RingSize:   ringSize,
		Heartbeat:  heartbeatInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)
	cmd.Root().SetContext(ctx)

	var heartbeat *trace.Heartbeat
	if heartbeatInterval > 0 {
		heartbeat = trace.StartHeartbeat(tracer, heartbeatInterval)
	}

	cleanup := func() {
		if heartbeat != nil {
			heartbeat.Stop()
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}
	return cleanup, nil
}
