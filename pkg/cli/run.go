package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/pkgreview/pkgreview/internal/engine"
	"github.com/pkgreview/pkgreview/pkg/checkout"
	"github.com/pkgreview/pkgreview/pkg/cistatus"
	"github.com/pkgreview/pkgreview/pkg/config"
	"github.com/pkgreview/pkgreview/pkg/hosting"
	"github.com/pkgreview/pkgreview/pkg/interfaces"
	"github.com/pkgreview/pkgreview/pkg/logger"
	"github.com/pkgreview/pkgreview/pkg/nix"
	"github.com/pkgreview/pkgreview/pkg/notifier"
	"github.com/pkgreview/pkgreview/pkg/process"
	"github.com/pkgreview/pkgreview/pkg/report"
	"github.com/pkgreview/pkgreview/pkg/scheduler"
	"github.com/pkgreview/pkgreview/pkg/shell"
	"github.com/pkgreview/pkgreview/pkg/state"
	"github.com/pkgreview/pkgreview/pkg/types"
	"github.com/pkgreview/pkgreview/pkg/watcher"
)

// reviewSelector names what a review subcommand wants reviewed.
type reviewSelector struct {
	pullRequest int
	headRev     string
	worktree    bool
	watch       bool
	settling    time.Duration
}

// runReview is the shared body of the pr, rev and wip commands.
func runReview(ctx context.Context, sel reviewSelector, flags *reviewFlags) error {
	cfg, err := loadConfiguration()
	if err != nil {
		return &exitError{code: ExitRunFailed, msg: err.Error()}
	}

	log := logger.CreateLogger(cfg.Logging.File, cfg.Logging.Level)
	eng, cleanup, err := buildEngine(cfg, log)
	if err != nil {
		return &exitError{code: ExitRunFailed, msg: err.Error()}
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pm := process.NewManager(log)
	pm.RegisterShutdownHandler(cancel)
	pm.Start(ctx)
	defer pm.Stop()

	req := engine.Request{
		PullRequest: sel.pullRequest,
		HeadRev:     sel.headRev,
		BaseRev:     flags.baseRev,
		NoBuild:     flags.noBuild,
		Concurrency: flags.concurrency,
		Timeout:     flags.timeout,
		RunDeadline: flags.runDeadline,
	}
	if sel.worktree {
		abs, err := filepath.Abs(repoRoot)
		if err != nil {
			return &exitError{code: ExitRunFailed, msg: fmt.Sprintf("cannot resolve repository path: %v", err)}
		}
		req.WorkTree = abs
	}

	if sel.worktree && sel.watch {
		return watchReview(ctx, eng, req, sel, flags)
	}
	return reviewOnce(ctx, eng, req, flags)
}

// reviewOnce runs a single review and maps its outcome to an exit code.
func reviewOnce(ctx context.Context, eng *engine.Engine, req engine.Request, flags *reviewFlags) error {
	result, err := eng.Review(ctx, req)
	if err != nil {
		return &exitError{code: ExitRunFailed, msg: err.Error()}
	}

	if err := renderReport(result.Report); err != nil {
		return &exitError{code: ExitRunFailed, msg: err.Error()}
	}
	announceShell(result.Environment, flags)

	if cancelled(result.Report) {
		printWarning("Run cancelled before every target got a verdict; the report is partial")
		return &exitError{code: ExitRunFailed}
	}
	if !result.Report.Succeeded() {
		return &exitError{code: ExitTargetsFailed}
	}
	return nil
}

// cancelled reports whether the run was cut short, leaving targets
// without a verdict. Such a report must not pass for an all-green run.
func cancelled(rep *types.Report) bool {
	for _, entry := range rep.Groups[types.OutcomeSkipped] {
		if entry.Diagnostics == scheduler.SkipReasonCancelled {
			return true
		}
	}
	return false
}

// watchReview reruns the review after each settled burst of worktree
// changes. Runs are serialized by the watcher's event loop.
func watchReview(ctx context.Context, eng *engine.Engine, req engine.Request, sel reviewSelector, flags *reviewFlags) error {
	runOnce := func() {
		if err := reviewOnce(ctx, eng, req, flags); err != nil {
			var exitErr *exitError
			if errors.As(err, &exitErr) && exitErr.msg != "" {
				printError(exitErr.msg)
			}
		}
	}

	runOnce()

	w, err := watcher.New(req.WorkTree, sel.settling, nil)
	if err != nil {
		return &exitError{code: ExitRunFailed, msg: err.Error()}
	}
	defer w.Close()

	printInfo("Watching for changes. Press Ctrl+C to stop.")
	if err := w.Run(ctx, runOnce); err != nil && !errors.Is(err, context.Canceled) {
		return &exitError{code: ExitRunFailed, msg: err.Error()}
	}
	return nil
}

// runRenderReport re-renders a recorded run without building anything.
func runRenderReport(runID string) error {
	cfg, err := loadConfiguration()
	if err != nil {
		return &exitError{code: ExitRunFailed, msg: err.Error()}
	}

	store := state.NewStore(cfg.CacheDir)
	if runID == "" {
		runID, err = store.LatestRunID()
		if err != nil {
			return &exitError{code: ExitRunFailed, msg: err.Error()}
		}
	}

	meta, jobs, removed, err := store.LoadRun(runID)
	if err != nil {
		return &exitError{code: ExitRunFailed, msg: err.Error()}
	}

	rep, err := report.Assemble(*meta, jobs, removed)
	if err != nil {
		return &exitError{code: ExitRunFailed, msg: err.Error()}
	}
	if err := renderReport(rep); err != nil {
		return &exitError{code: ExitRunFailed, msg: err.Error()}
	}
	if !rep.Succeeded() {
		return &exitError{code: ExitTargetsFailed}
	}
	return nil
}

// loadConfiguration loads the config file and overlays environment
// settings. Precedence: flags (applied by the caller) over environment
// over file over defaults.
func loadConfiguration() (*config.Config, error) {
	manager := config.NewManager()

	var cfg *config.Config
	var err error
	switch {
	case cfgFile != "":
		cfg, err = manager.LoadConfig(cfgFile)
	case viper.ConfigFileUsed() != "":
		cfg, err = manager.LoadConfig(viper.ConfigFileUsed())
	default:
		cfg = manager.Default()
	}
	if err != nil {
		return nil, err
	}

	applyEnvironment(cfg)

	if cfg.System == "" {
		cfg.System = nix.CurrentSystem()
	}
	if rootCmd.PersistentFlags().Changed("verbosity") {
		cfg.Logging.Level = verbosity
	}

	return cfg, manager.ValidateConfig(cfg)
}

// applyEnvironment overlays PKGREVIEW_* environment variables picked
// up by viper onto the file configuration.
func applyEnvironment(cfg *config.Config) {
	if viper.IsSet("remote") {
		cfg.Remote = viper.GetString("remote")
	}
	if viper.IsSet("system") {
		cfg.System = viper.GetString("system")
	}
	if viper.IsSet("cachedir") {
		cfg.CacheDir = viper.GetString("cachedir")
	}
	if viper.IsSet("build.concurrency") {
		cfg.Build.Concurrency = viper.GetInt("build.concurrency")
	}
	if viper.IsSet("build.timeoutminutes") {
		cfg.Build.TimeoutMinutes = viper.GetInt("build.timeoutminutes")
	}
	if viper.IsSet("build.rundeadlineminutes") {
		cfg.Build.RunDeadlineMinutes = viper.GetInt("build.rundeadlineminutes")
	}
	if viper.IsSet("logging.level") {
		cfg.Logging.Level = viper.GetString("logging.level")
	}
	if viper.IsSet("host.owner") {
		cfg.Host.Owner = viper.GetString("host.owner")
	}
	if viper.IsSet("host.repo") {
		cfg.Host.Repo = viper.GetString("host.repo")
	}
	if viper.IsSet("host.tokenenv") {
		cfg.Host.TokenEnv = viper.GetString("host.tokenenv")
	}
}

// buildEngine assembles the review engine and its external
// collaborators. The returned cleanup releases checkouts.
func buildEngine(cfg *config.Config, log logger.Logger) (*engine.Engine, func(), error) {
	absRoot, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot resolve repository path: %w", err)
	}

	client := nix.NewClient(log, cfg.Build.DiagnosticsTailBytes, cfg.Build.ExtraArgs)
	revisions := checkout.NewGitSource(absRoot, filepath.Join(cfg.CacheDir, "worktrees"), log)

	deps := interfaces.ReviewDependencies{
		Evaluator: client,
		Builder:   client,
		Revisions: revisions,
		Host:      hosting.NewGitHubClient(cfg.Host.Owner, cfg.Host.Repo, os.Getenv(cfg.Host.TokenEnv)),
		Notifier:  notifier.New(notificationsEnabled(cfg), log),
		Store:     state.NewStore(cfg.CacheDir),
	}
	if cfg.Skip.CheckUpstreamCI {
		deps.CIStatus = cistatus.NewHydraClient(log)
	}

	cleanup := func() {
		if err := revisions.Cleanup(); err != nil {
			log.Warn("Failed to clean up checkouts", logger.WithField("error", err))
		}
	}
	return engine.New(cfg, deps, log), cleanup, nil
}

func notificationsEnabled(cfg *config.Config) bool {
	return cfg.Notifications.Enabled == nil || *cfg.Notifications.Enabled
}

// renderReport writes the report to stdout in the selected format.
func renderReport(rep *types.Report) error {
	switch output {
	case "markdown":
		fmt.Print(report.Markdown(rep))
		return nil
	case "json":
		return report.JSON(os.Stdout, rep)
	case "text", "":
		report.Text(os.Stdout, rep)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", output)
	}
}

// announceShell tells the user where the review shell landed.
func announceShell(env *shell.Environment, flags *reviewFlags) {
	if flags.noShell || env == nil || env.ExprPath == "" {
		return
	}
	printSuccess(fmt.Sprintf("Review shell with %d artifact(s):", len(env.Artifacts)))
	printInfo(fmt.Sprintf("  nix-shell %s", env.ExprPath))
}
