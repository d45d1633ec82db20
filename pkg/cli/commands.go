package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// reviewFlags are the options shared by the review subcommands.
type reviewFlags struct {
	concurrency int
	timeout     time.Duration
	runDeadline time.Duration
	noBuild     bool
	baseRev     string
	noShell     bool
}

func (f *reviewFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.concurrency, "concurrency", "j", 0, "parallel builds (default: number of CPUs)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "per-target build timeout (default: 30m)")
	cmd.Flags().DurationVar(&f.runDeadline, "run-deadline", 0, "wall-clock bound for the whole run")
	cmd.Flags().BoolVar(&f.noBuild, "no-build", false, "compute the rebuild set without building")
	cmd.Flags().StringVar(&f.baseRev, "base", "", "base revision override")
	cmd.Flags().BoolVar(&f.noShell, "no-shell", false, "skip the interactive review shell")
}

func newPRCmd() *cobra.Command {
	flags := &reviewFlags{}
	cmd := &cobra.Command{
		Use:   "pr <number>",
		Short: "Review a pull request",
		Long:  `Fetch a pull request's metadata, build the targets it affects and report the results.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(args[0])
			if err != nil || number < 1 {
				return fmt.Errorf("invalid pull request number: %s", args[0])
			}
			return runReview(cmd.Context(), reviewSelector{pullRequest: number}, flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func newRevCmd() *cobra.Command {
	flags := &reviewFlags{}
	cmd := &cobra.Command{
		Use:   "rev <ref>",
		Short: "Review a local revision",
		Long:  `Build the targets a committed revision changes relative to its merge base.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReview(cmd.Context(), reviewSelector{headRev: args[0]}, flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func newWipCmd() *cobra.Command {
	flags := &reviewFlags{}
	var watch bool
	var settling time.Duration

	cmd := &cobra.Command{
		Use:   "wip",
		Short: "Review uncommitted changes",
		Long:  `Build the targets the working tree changes relative to HEAD.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			selector := reviewSelector{worktree: true, watch: watch, settling: settling}
			return runReview(cmd.Context(), selector, flags)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-run the review when the worktree changes")
	cmd.Flags().DurationVar(&settling, "settling", time.Second, "quiet period before a watched re-run")
	return cmd
}

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [run-id]",
		Short: "Re-render a recorded review run",
		Long:  `Render the report of a previous run (the latest by default) without rebuilding anything.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) > 0 {
				runID = args[0]
			}
			return runRenderReport(runID)
		},
	}
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of pkgreview",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("❄ pkgreview v%s\n", version)
		},
	}
}
