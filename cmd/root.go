package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sotugyo/internal/app"
	"sotugyo/internal/cli"
	"sotugyo/internal/config"
	"sotugyo/internal/formatting"
	"sotugyo/internal/graph"
	"sotugyo/internal/launch"
	"sotugyo/internal/registry"
	"sotugyo/internal/structure"
	"sotugyo/internal/toolreg"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeNotFound indicates that a project, package or node does not exist.
	ExitCodeNotFound = 2
	// ExitCodeNeedsDecision indicates a conflict or unresolved executable that
	// the user has to resolve.
	ExitCodeNeedsDecision = 3
)

// version is set by SetVersion from main.
var version = "dev"

// SetVersion sets the version reported by the CLI.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return version
}

// NeedsDecisionError is returned by commands whose result contains issues
// the user has to decide on.
type NeedsDecisionError struct {
	Summary string
}

func (e *NeedsDecisionError) Error() string {
	return "user decision required: " + e.Summary
}

// rootOptions holds the global flag values and the lazily created application.
type rootOptions struct {
	debug     bool
	configDir string
	logFile   string
	output    string
	noHeaders bool
	quiet     bool

	app *app.Application
}

// application bootstraps the application on first use. Commands that do
// not touch projects or packages never load the configuration.
func (o *rootOptions) application(cmd *cobra.Command) (*app.Application, error) {
	if o.app != nil {
		return o.app, nil
	}
	cfg := app.NewConfig(o.debug, o.configDir, o.logFile)
	cfg.LogOutput = cmd.ErrOrStderr()
	a, err := app.NewApplication(cfg)
	if err != nil {
		return nil, configError(cmd, err)
	}
	o.app = a
	return a, nil
}

// configError prints the full report for configuration problems to stderr
// and returns the error the command fails with.
func configError(cmd *cobra.Command, err error) error {
	var errs config.ConfigurationErrorCollection
	if !errors.As(err, &errs) || !errs.HasErrors() {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), errs.GetDetailedReport())
	if len(errs.ByType(config.ErrorTypeValidation)) == errs.Count() {
		return config.FormatValidationError("configuration", errs.Errors[0].FileName, err)
	}
	return err
}

func (o *rootOptions) printer(cmd *cobra.Command) (*formatting.Printer, error) {
	format, err := formatting.ParseFormat(o.output)
	if err != nil {
		return nil, err
	}
	return formatting.NewPrinter(cmd.OutOrStdout(), formatting.Options{
		Format:    format,
		NoHeaders: o.noHeaders,
		Color:     cli.IsTerminal(cmd.OutOrStdout()),
	}), nil
}

func (o *rootOptions) close() {
	if o.app != nil {
		_ = o.app.Close()
		o.app = nil
	}
}

// newRootCmd builds the complete command tree.
func newRootCmd() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "sotugyo",
		Short: "Manage production projects and launch their tools",
		Long: `sotugyo keeps a registry of production projects, checks and repairs
their directory structure, and launches tool packages from Rez style
package repositories with per-launch logs.`,
		// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
		SilenceUsage: true,
		Version:      version,
	}
	rootCmd.SetVersionTemplate(`{{printf "sotugyo version %s\n" .Version}}`)

	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flags.StringVar(&opts.configDir, "config-dir", "", "Configuration directory (env: SOTUGYO_MACHINE_CONFIG_DIR)")
	flags.StringVar(&opts.logFile, "log-file", "", "Also write JSON logs to this rotated file")
	flags.StringVarP(&opts.output, "output", "o", "table", "Output format (table, json, yaml)")
	flags.BoolVar(&opts.noHeaders, "no-headers", false, "Suppress header row in table output")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress progress indicators")

	rootCmd.AddCommand(newProjectCmd(opts))
	rootCmd.AddCommand(newSettingsCmd(opts))
	rootCmd.AddCommand(newToolsCmd(opts))
	rootCmd.AddCommand(newLaunchCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())

	return rootCmd, opts
}

func execute(rootCmd *cobra.Command, opts *rootOptions) error {
	defer opts.close()
	return rootCmd.Execute()
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd, opts := newRootCmd()
	if err := execute(rootCmd, opts); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var notFound *registry.NotFoundError
	var pkgNotFound *launch.PackageNotFoundError
	var nodeNotFound *graph.NodeNotFoundError
	var toolNotFound *toolreg.NotFoundError
	if errors.As(err, &notFound) || errors.As(err, &pkgNotFound) || errors.As(err, &nodeNotFound) ||
		errors.As(err, &toolNotFound) {
		return ExitCodeNotFound
	}

	var decision *NeedsDecisionError
	var conflict *structure.StructureConflictError
	var unresolved *launch.ExecutableUnresolvedError
	if errors.As(err, &decision) || errors.As(err, &conflict) || errors.As(err, &unresolved) {
		return ExitCodeNeedsDecision
	}

	return ExitCodeError
}

func warnf(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(cmd.ErrOrStderr(), "Warning: "+format+"\n", args...)
}
