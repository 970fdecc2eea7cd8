package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"sotugyo/internal/cli"
	"sotugyo/internal/formatting"
	"sotugyo/internal/graph"
	"sotugyo/internal/launch"
	"sotugyo/internal/project"
	"sotugyo/internal/registry"
)

type launchOptions struct {
	node       string
	projectRef string
	follow     bool
	env        []string
	workDir    string
}

func newLaunchCmd(opts *rootOptions) *cobra.Command {
	lo := &launchOptions{}
	cmd := &cobra.Command{
		Use:   "launch <name> [version] [-- args...]",
		Short: "Launch a tool package",
		Long: `Launch a tool package detached from the terminal. Its output goes to a
new log file under the launch log directory.

Without a version the highest available version is used. With --node the
package is taken from a tool environment node of the project's node graph.
The current project root is the working directory unless --workdir is set.`,
		Example: `  sotugyo launch maya 2024
  sotugyo launch houdini -- -foreground
  sotugyo launch --node "Maya Env" --follow`,
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			a, err := opts.application(cmd)
			if err != nil {
				return nil, cobra.ShellCompDirectiveError
			}
			cat := a.Services().Catalog.Refresh(cmd.Context())
			switch len(args) {
			case 0:
				return cat.Names(), cobra.ShellCompDirectiveNoFileComp
			case 1:
				return cat.Versions(args[0]), cobra.ShellCompDirectiveNoFileComp
			default:
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLaunch(cmd, opts, lo, args)
		},
	}

	cmd.Flags().StringVar(&lo.node, "node", "", "Launch the package of a node graph tool environment (uuid or name)")
	cmd.Flags().StringVarP(&lo.projectRef, "project", "p", "", "Project to launch in (default: current project)")
	cmd.Flags().BoolVarP(&lo.follow, "follow", "f", false, "Stream the launch log until interrupted")
	cmd.Flags().StringArrayVarP(&lo.env, "env", "e", nil, "Extra environment variable KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&lo.workDir, "workdir", "", "Working directory for the tool")
	return cmd
}

func runLaunch(cmd *cobra.Command, opts *rootOptions, lo *launchOptions, args []string) error {
	positional, toolArgs := splitAtDash(cmd, args)

	env, err := parseEnvFlags(lo.env)
	if err != nil {
		return err
	}

	a, err := opts.application(cmd)
	if err != nil {
		return err
	}
	p, err := opts.printer(cmd)
	if err != nil {
		return err
	}
	svc := a.Services()

	proj, err := launchProject(svc.Projects, lo.projectRef, lo.node != "")
	if err != nil {
		return err
	}

	var name, version string
	switch {
	case lo.node != "":
		if len(positional) > 0 {
			return fmt.Errorf("--node cannot be combined with a package name")
		}
		doc, err := graph.Load(proj.Root)
		if err != nil {
			return err
		}
		if name, version, err = doc.PackageRef(lo.node); err != nil {
			return err
		}
	case len(positional) == 0:
		return fmt.Errorf("a package name or --node is required")
	case len(positional) > 2:
		return fmt.Errorf("unexpected arguments %q; pass tool arguments after --", positional[2:])
	default:
		name = positional[0]
		if len(positional) == 2 {
			version = positional[1]
		}
	}

	refreshCatalog(cmd, opts, svc.Catalog)

	req := launch.Request{
		Name:    name,
		Version: version,
		Args:    toolArgs,
		WorkDir: lo.workDir,
		Env:     env,
	}
	if req.WorkDir != "" {
		if req.WorkDir, err = filepath.Abs(req.WorkDir); err != nil {
			return err
		}
	}
	if proj != nil {
		req.ProjectRoot = proj.Root
	}

	outcome, err := svc.Launcher.Launch(cmd.Context(), req)
	if err != nil {
		return err
	}

	if outcome.Diagnostic != nil {
		warnf(cmd, "%s", outcome.Diagnostic.Message)
	}
	if err := p.Print(outcome, func(t table.Writer) {
		p.Header(t, "KEY", "VALUE")
		t.AppendRows([]table.Row{
			{"package", outcome.Package},
			{"pid", outcome.PID},
			{"log", formatting.OrDash(outcome.LogPath)},
			{"workdir", outcome.WorkDir},
			{"command", strings.Join(outcome.Command, " ")},
		})
	}); err != nil {
		return err
	}

	if lo.follow && outcome.LogPath != "" {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if cli.IsTerminal(cmd.ErrOrStderr()) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Following launch log, press Ctrl-C to stop")
		}
		return launch.Follow(ctx, outcome.LogPath, cmd.OutOrStdout(), 200*time.Millisecond)
	}
	return nil
}

// launchProject picks the project a launch runs in. It is nil when no
// project is selected and none is required.
func launchProject(svc *project.Service, ref string, required bool) (*registry.Project, error) {
	if ref != "" {
		return resolveProject(svc, ref)
	}
	current, err := svc.Current()
	if err != nil {
		return nil, err
	}
	if current == nil && required {
		return currentProject(svc)
	}
	return current, nil
}

func splitAtDash(cmd *cobra.Command, args []string) (positional, rest []string) {
	dash := cmd.ArgsLenAtDash()
	if dash < 0 {
		return args, nil
	}
	return args[:dash], args[dash:]
}

func parseEnvFlags(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(values))
	for _, kv := range values {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --env value %q, expected KEY=VALUE", kv)
		}
		env[key] = value
	}
	return env, nil
}
