// Package cli provides the command-line interface for pkgreview
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Exit codes: the caller's contract is that the code reflects the
// review outcome, not just "an error happened".
const (
	ExitOK = 0
	// ExitTargetsFailed: the review completed and some targets failed.
	ExitTargetsFailed = 1
	// ExitRunFailed: the review could not run at all.
	ExitRunFailed = 2
)

var (
	cfgFile   string
	repoRoot  string
	verbosity string
	output    string
	version   string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "pkgreview",
	Short: "Build and review the packages a change touches",
	Long: `❄ pkgreview - automatic review builds for package-set changes

pkgreview compares the package graph before and after a proposed change,
builds exactly the targets the change affects, and drops you into a shell
with the built artifacts for manual inspection.`,

	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("❄ pkgreview v%s\n", version)
			return
		}
		cmd.Help()
	},
}

// Execute runs the CLI and returns the process exit code.
func Execute(v string) int {
	version = v

	initializeRootCommand()

	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			if exitErr.msg != "" {
				printError(exitErr.msg)
			}
			return exitErr.code
		}
		printError(err.Error())
		return ExitRunFailed
	}
	return ExitOK
}

// initializeRootCommand sets up the root command and its flags.
// Explicit initialization keeps the command tree testable.
func initializeRootCommand() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: pkgreview.config.json)")
	rootCmd.PersistentFlags().StringVar(&repoRoot, "repo", ".", "package collection repository")
	rootCmd.PersistentFlags().StringVarP(&verbosity, "verbosity", "v", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "report format (text, markdown, json)")

	rootCmd.Flags().Bool("version", false, "Print version information and quit")

	rootCmd.AddCommand(newPRCmd())
	rootCmd.AddCommand(newRevCmd())
	rootCmd.AddCommand(newWipCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(repoRoot)
		viper.AddConfigPath(".")
		viper.SetConfigName("pkgreview.config")
		viper.SetConfigType("json")
	}

	// PKGREVIEW_BUILD_CONCURRENCY maps to build.concurrency and so on.
	viper.SetEnvPrefix("PKGREVIEW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbosity == "debug" {
			fmt.Println("Using config file:", viper.ConfigFileUsed())
		}
	}
}

// Helper functions

func printSuccess(message string) {
	fmt.Printf("❄ %s %s\n", color.GreenString("[pkgreview]"), message)
}

func printError(message string) {
	fmt.Fprintf(os.Stderr, "❄ %s %s\n", color.RedString("[pkgreview]"), message)
}

func printInfo(message string) {
	fmt.Printf("❄ %s %s\n", color.CyanString("[pkgreview]"), message)
}

func printWarning(message string) {
	fmt.Printf("❄ %s %s\n", color.YellowString("[pkgreview]"), message)
}

// exitError carries a specific process exit code out of a command.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }
