// Package main is the CLI entry point for winswitch.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/win_switch/internal/activity"
	"github.com/eliteGoblin/focusd/win_switch/internal/config"
	"github.com/eliteGoblin/focusd/win_switch/internal/console"
	"github.com/eliteGoblin/focusd/win_switch/internal/daemon"
	"github.com/eliteGoblin/focusd/win_switch/internal/domain"
	"github.com/eliteGoblin/focusd/win_switch/internal/infra"
	"github.com/eliteGoblin/focusd/win_switch/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "winswitch",
	Short: "Cycle focus between open windows while you are away",
	Long: `winswitch periodically brings open windows to the foreground with
jittered delays. Before every switch it waits for a quiet period with no
pointer movement or keystrokes, so it never fights a real user.

Settings are reread from the config file on every cycle.`,
	Version:      Version,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         run,
}

type options struct {
	minDelay           int
	maxDelay           int
	apps               []string
	skipLog            bool
	configPath         string
	list               bool
	detach             bool
	installAutostart   bool
	uninstallAutostart bool
	debug              bool
}

var opts options

func init() {
	flags := rootCmd.Flags()
	flags.IntVar(&opts.minDelay, "min-delay", int(config.DefaultMinDelay/time.Second), "Minimum delay between switches in seconds")
	flags.IntVar(&opts.maxDelay, "max-delay", int(config.DefaultMaxDelay/time.Second), "Maximum delay between switches in seconds")
	flags.StringSliceVar(&opts.apps, "apps", nil, "Only switch to these window titles or applications")
	flags.BoolVar(&opts.skipLog, "skip-log", false, "Do not write the switch log for this run")
	flags.StringVar(&opts.configPath, "config", "", "Config file (default ~/.winswitch/config.json)")
	flags.BoolVar(&opts.list, "list", false, "Print the current candidate windows and exit")
	flags.BoolVar(&opts.detach, "detach", false, "Run in the background, detached from the terminal")
	flags.BoolVar(&opts.installAutostart, "install-autostart", false, "Start winswitch at login and exit")
	flags.BoolVar(&opts.uninstallAutostart, "uninstall-autostart", false, "Remove the login item and exit")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	rootCmd.MarkFlagsMutuallyExclusive("install-autostart", "uninstall-autostart")
	rootCmd.SetVersionTemplate(fmt.Sprintf("winswitch %s (commit: %s, built: %s)\n", Version, Commit, BuildTime))
}

// overridesFromFlags turns explicitly set flags into config overrides.
func overridesFromFlags(cmd *cobra.Command, o options) (config.Overrides, error) {
	var ov config.Overrides
	if o.minDelay < 0 || o.maxDelay < 0 {
		return ov, fmt.Errorf("delays must not be negative")
	}
	if cmd.Flags().Changed("min-delay") && cmd.Flags().Changed("max-delay") && o.minDelay > o.maxDelay {
		return ov, fmt.Errorf("--min-delay (%d) must not exceed --max-delay (%d)", o.minDelay, o.maxDelay)
	}
	if cmd.Flags().Changed("min-delay") {
		d := time.Duration(o.minDelay) * time.Second
		ov.MinDelay = &d
	}
	if cmd.Flags().Changed("max-delay") {
		d := time.Duration(o.maxDelay) * time.Second
		ov.MaxDelay = &d
	}
	ov.TargetApps = o.apps
	return ov, nil
}

func run(cmd *cobra.Command, _ []string) error {
	overrides, err := overridesFromFlags(cmd, opts)
	if err != nil {
		return err
	}

	paths := infra.DefaultPaths()
	fs := infra.NewFileSystemManager()
	runner := infra.NewCommandRunner()
	if opts.configPath == "" {
		opts.configPath = paths.ConfigPath
	}
	configPath := fs.ExpandHome(opts.configPath)

	switch {
	case opts.installAutostart:
		return installAutostart(cmd.Context(), paths, runner, configPath)
	case opts.uninstallAutostart:
		return uninstallAutostart(cmd.Context(), paths, runner)
	case opts.detach:
		pid, err := daemon.StartDetached("", os.Args[1:])
		if err != nil {
			return fmt.Errorf("failed to start in background: %w", err)
		}
		fmt.Printf("winswitch started in background (pid %d)\n", pid)
		return nil
	}

	// Peek at background_mode before the logger exists.
	initial := config.NewStore(configPath, overrides, fs, zap.NewNop()).Load()

	if err := fs.EnsureDir(paths.LogPath); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	logger := createLogger(paths, opts.debug, initial.BackgroundMode || opts.list)
	defer func() { _ = logger.Sync() }()

	store := config.NewStore(configPath, overrides, fs, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	platform := infra.NewPlatform(runner, logger)
	defer func() { _ = platform.Close() }()
	source := infra.NewWindowSource(platform.Lister)

	if opts.list {
		return listWindows(ctx, store, source)
	}

	pm := infra.NewProcessManager()
	lock := infra.NewInstanceLock(paths.LockPath, pm)
	stale, err := lock.Acquire(Version)
	if err != nil {
		if errors.Is(err, infra.ErrAlreadyRunning) {
			fmt.Fprintln(os.Stderr, "winswitch:", err)
		}
		return err
	}
	defer func() { _ = lock.Release() }()
	if stale != nil {
		logger.Info("replaced stale instance record", zap.Int("stale_pid", stale.PID))
	}

	logger.Info("winswitch starting",
		zap.String("version", Version),
		zap.Int("pid", pm.GetCurrentPID()),
		zap.String("config", store.Path()),
		zap.String("platform", platform.Name))

	monitor := activity.NewMonitor(activity.DefaultMonitorConfig(), platform.Pointer, platform.KeyTap, logger)
	_ = monitor.Start(ctx) // failure is logged; the monitor then reports "active"
	defer func() { _ = monitor.Stop() }()

	activator := usecase.NewActivator(pm, platform.Backends, platform.Gesture, logger)

	var printer *console.Printer
	if !initial.BackgroundMode {
		printer = console.NewPrinter(os.Stdout)
	}

	scheduler := daemon.NewScheduler(
		daemon.SchedulerConfig{SkipLog: opts.skipLog, Console: printer},
		store,
		source,
		monitor,
		activator,
		func(path string) domain.SwitchLogger { return infra.NewFileSwitchLogger(path, fs) },
		logger,
	)

	watcher := config.NewWatcher(store.Path(), logger)
	if changes, err := watcher.Start(ctx); err != nil {
		logger.Warn("config watch disabled, edits apply on the next cycle", zap.Error(err))
	} else {
		scheduler.WithConfigChanges(changes)
		defer func() { _ = watcher.Close() }()
	}

	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("winswitch stopped")
	return nil
}

func listWindows(ctx context.Context, store *config.Store, source domain.WindowSource) error {
	cfg := store.Load()
	windows, err := source.Enumerate(ctx, cfg.IgnoredKeywords)
	if err != nil {
		return err
	}
	console.NewPrinter(os.Stdout).Candidates(windows)
	return nil
}

func autostartKind() (infra.AutostartKind, error) {
	switch runtime.GOOS {
	case "darwin":
		return infra.AutostartLaunchAgent, nil
	case "linux":
		return infra.AutostartXDG, nil
	default:
		return "", fmt.Errorf("autostart on %s: %w", runtime.GOOS, domain.ErrUnsupportedPlatform)
	}
}

func installAutostart(ctx context.Context, paths *infra.Paths, runner infra.CommandRunner, configPath string) error {
	kind, err := autostartKind()
	if err != nil {
		return err
	}
	exe, err := infra.ResolveExecutable()
	if err != nil {
		return fmt.Errorf("failed to resolve executable: %w", err)
	}

	manager := infra.NewAutostartManager(kind, paths, runner)
	if manager.IsInstalled() && !manager.NeedsUpdate(exe, configPath) {
		fmt.Printf("Autostart already installed: %s\n", manager.Path())
		return nil
	}
	if err := manager.Install(ctx, exe, configPath); err != nil {
		return err
	}
	fmt.Printf("Autostart installed: %s\n", manager.Path())
	return nil
}

func uninstallAutostart(ctx context.Context, paths *infra.Paths, runner infra.CommandRunner) error {
	kind, err := autostartKind()
	if err != nil {
		return err
	}
	manager := infra.NewAutostartManager(kind, paths, runner)
	if err := manager.Uninstall(ctx); err != nil {
		return err
	}
	fmt.Println("Autostart removed")
	return nil
}

// createLogger writes JSON logs to the data directory, and to stderr when
// running in the foreground.
func createLogger(paths *infra.Paths, debug, quiet bool) *zap.Logger {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{paths.LogPath}
	if !quiet {
		config.OutputPaths = append(config.OutputPaths, "stderr")
	}
	config.ErrorOutputPaths = []string{paths.ErrorLogPath}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := config.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}
