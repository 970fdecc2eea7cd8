package cmd

import (
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"sotugyo/internal/formatting"
	"sotugyo/internal/toolreg"
)

func newToolsRegisterCmd(opts *rootOptions) *cobra.Command {
	var reg toolreg.Registration
	cmd := &cobra.Command{
		Use:   "register <executable>",
		Short: "Register an executable outside any package repository",
		Long: `Register an executable by path. It joins the catalog as <name>-<version>
and can be launched like any package. A package from a repository root with
the same name and version takes precedence.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.application(cmd)
			if err != nil {
				return err
			}
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			exe, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			reg.Executable = exe
			tool, err := a.Services().Tools.Register(reg)
			if err != nil {
				return err
			}
			if p.Structured() {
				return p.Print(tool, nil)
			}
			p.Message("Registered %s (%s) at %s", tool.Ref(), tool.ID, tool.Executable)
			return nil
		},
	}
	cmd.Flags().StringVar(&reg.Name, "name", "", "Package name (default: executable file name)")
	cmd.Flags().StringVar(&reg.Version, "version", "", "Package version (default: "+toolreg.DefaultVersion+")")
	return cmd
}

func newToolsUnregisterCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:               "unregister <id>",
		Short:             "Remove a registered executable (the file is kept)",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeToolIDs(opts),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.application(cmd)
			if err != nil {
				return err
			}
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			removed, err := a.Services().Tools.Unregister(args[0])
			if err != nil {
				return err
			}
			if !removed {
				return &toolreg.NotFoundError{ID: args[0]}
			}
			p.Message("Unregistered tool %s", args[0])
			return nil
		},
	}
}

func newToolsRegisteredCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "registered",
		Short: "List executables registered by path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.application(cmd)
			if err != nil {
				return err
			}
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			tools, err := a.Services().Tools.List()
			if err != nil {
				return err
			}
			if tools == nil {
				tools = []toolreg.Tool{}
			}
			return p.Print(tools, func(t table.Writer) {
				p.Header(t, "ID", "NAME", "VERSION", "EXECUTABLE", "REGISTERED")
				for _, tool := range tools {
					t.AppendRow(table.Row{
						tool.ID,
						tool.Name,
						tool.Version,
						tool.Executable,
						formatting.FormatTime(tool.CreatedAt),
					})
				}
			})
		},
	}
}

func completeToolIDs(opts *rootOptions) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		a, err := opts.application(cmd)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		tools, err := a.Services().Tools.List()
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		ids := make([]string, 0, len(tools))
		for _, t := range tools {
			ids = append(ids, t.ID+"\t"+t.Ref())
		}
		return ids, cobra.ShellCompDirectiveNoFileComp
	}
}
