package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"sotugyo/internal/formatting"
	"sotugyo/internal/graph"
	"sotugyo/internal/project"
	"sotugyo/internal/registry"
)

func newProjectCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects", "p"},
		Short:   "Manage registered projects",
	}

	cmd.AddCommand(
		newProjectListCmd(opts),
		newProjectRegisterCmd(opts),
		newProjectUnregisterCmd(opts),
		newProjectSelectCmd(opts),
		newProjectCurrentCmd(opts),
		newProjectRenameCmd(opts),
		newProjectCheckCmd(opts),
		newProjectRepairCmd(opts),
		newProjectNodesCmd(opts),
	)
	return cmd
}

func newProjectListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered projects",
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
			svc := a.Services().Projects

			projects, err := svc.Projects()
			if err != nil {
				return err
			}
			for _, issue := range svc.Issues() {
				warnf(cmd, "%s", issue.Message)
			}
			current, _ := svc.Current()

			if projects == nil {
				projects = []registry.Project{}
			}
			return p.Print(projects, func(t table.Writer) {
				p.Header(t, "", "ID", "NAME", "ROOT", "CREATED")
				for _, pr := range projects {
					marker := ""
					if current != nil && current.ID == pr.ID {
						marker = "*"
					}
					t.AppendRow(table.Row{marker, pr.ID, pr.Name, pr.Root, formatting.FormatTime(pr.CreatedAt)})
				}
			})
		},
	}
}

func newProjectRegisterCmd(opts *rootOptions) *cobra.Command {
	var ensure bool
	cmd := &cobra.Command{
		Use:   "register <name> <root>",
		Short: "Register a project root",
		Long: `Register a project root under a display name.

With --ensure the root and every missing entry of the project skeleton are
created first. Without it the root must already exist; missing entries are
reported and can be created later with "project repair".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.application(cmd)
			if err != nil {
				return err
			}
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			root, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}

			result, err := a.Services().Projects.Register(args[0], root, ensure)
			if err != nil {
				if len(result.Issues) > 0 && !p.Structured() {
					printResult(p, result)
				}
				return err
			}
			p.Message("Registered project %q (%s)", result.Project.Name, result.Project.ID)
			return finishResult(p, result)
		},
	}
	cmd.Flags().BoolVar(&ensure, "ensure", false, "Create the root and missing structure entries")
	return cmd
}

func newProjectUnregisterCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:               "unregister <id>",
		Short:             "Remove a project from the registry (files are kept)",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeProjectIDs(opts),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.application(cmd)
			if err != nil {
				return err
			}
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			pr, err := resolveProject(a.Services().Projects, args[0])
			if err != nil {
				return err
			}
			if err := a.Services().Projects.Unregister(pr.ID); err != nil {
				return err
			}
			p.Message("Unregistered project %q (%s)", pr.Name, pr.ID)
			return nil
		},
	}
}

func newProjectSelectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:               "select <id>",
		Short:             "Make a project the current one",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeProjectIDs(opts),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.application(cmd)
			if err != nil {
				return err
			}
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			pr, err := resolveProject(a.Services().Projects, args[0])
			if err != nil {
				return err
			}
			selected, err := a.Services().Projects.Select(pr.ID)
			if err != nil {
				return err
			}
			p.Message("Selected project %q at %s", selected.Name, selected.Root)
			return nil
		},
	}
}

func newProjectCurrentCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the current project",
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
			current, err := a.Services().Projects.Current()
			if err != nil {
				return err
			}
			if current == nil {
				if p.Structured() {
					return p.Print(nil, nil)
				}
				p.Message("No project selected")
				return nil
			}
			return p.Print(current, func(t table.Writer) {
				p.Header(t, "KEY", "VALUE")
				t.AppendRows([]table.Row{
					{"id", current.ID},
					{"name", current.Name},
					{"root", current.Root},
					{"created", formatting.FormatTime(current.CreatedAt)},
				})
			})
		},
	}
}

func newProjectRenameCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:               "rename <id> <name>",
		Short:             "Change a project's display name",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeProjectIDs(opts),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.application(cmd)
			if err != nil {
				return err
			}
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			pr, err := resolveProject(a.Services().Projects, args[0])
			if err != nil {
				return err
			}
			if err := a.Services().Projects.Rename(pr.ID, args[1]); err != nil {
				return err
			}
			p.Message("Renamed project %s to %q", pr.ID, strings.TrimSpace(args[1]))
			return nil
		},
	}
}

func newProjectCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:               "check [id]",
		Short:             "Validate a project's structure without changing it",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeProjectIDs(opts),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectResult(cmd, opts, args, (*project.Service).Check)
		},
	}
}

func newProjectRepairCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repair [id]",
		Short: "Create missing structure entries",
		Long: `Create the missing entries of a project's structure. Existing files are
never modified; type conflicts and a missing project root are reported and
left for you to resolve.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeProjectIDs(opts),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectResult(cmd, opts, args, (*project.Service).Repair)
		},
	}
}

func newProjectNodesCmd(opts *rootOptions) *cobra.Command {
	var toolsOnly bool
	cmd := &cobra.Command{
		Use:               "nodes [id]",
		Short:             "List the nodes of a project's node graph",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeProjectIDs(opts),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.application(cmd)
			if err != nil {
				return err
			}
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			pr, err := projectFromArgs(a.Services().Projects, args, 0)
			if err != nil {
				return err
			}
			doc, err := graph.Load(pr.Root)
			if err != nil {
				return err
			}

			nodes := doc.Nodes
			if toolsOnly {
				nodes = doc.ToolEnvironments()
			}
			rows := make([]nodeRow, 0, len(nodes))
			for _, n := range nodes {
				rows = append(rows, newNodeRow(doc, n))
			}
			return p.Print(rows, func(t table.Writer) {
				p.Header(t, "NAME", "KIND", "PACKAGE", "VERSION", "UPSTREAM", "UUID")
				for _, r := range rows {
					t.AppendRow(table.Row{
						r.Name,
						r.Kind,
						formatting.OrDash(r.Package),
						formatting.OrDash(r.Version),
						formatting.OrDash(strings.Join(r.Upstream, ", ")),
						formatting.OrDash(r.UUID),
					})
				}
			})
		},
	}
	cmd.Flags().BoolVar(&toolsOnly, "tools", false, "Only list tool environment nodes")
	return cmd
}

type nodeRow struct {
	Name       string     `json:"name"`
	UUID       string     `json:"uuid,omitempty"`
	Type       string     `json:"type"`
	Kind       graph.Kind `json:"kind"`
	Package    string     `json:"package,omitempty"`
	Version    string     `json:"version,omitempty"`
	Upstream   []string   `json:"upstream,omitempty"`
	Downstream []string   `json:"downstream,omitempty"`
}

func newNodeRow(doc *graph.Document, n graph.Node) nodeRow {
	row := nodeRow{
		Name:       n.Name,
		UUID:       n.UUID,
		Type:       n.Type,
		Kind:       n.Kind(),
		Upstream:   graph.NodeNames(doc.Upstream(n)),
		Downstream: graph.NodeNames(doc.Downstream(n)),
	}
	if n.Tool != nil {
		row.Package = n.Tool.PackageName()
		row.Version = n.Tool.VersionLabel
	}
	return row
}

func runProjectResult(cmd *cobra.Command, opts *rootOptions, args []string, op func(*project.Service, string) (project.Result, error)) error {
	a, err := opts.application(cmd)
	if err != nil {
		return err
	}
	p, err := opts.printer(cmd)
	if err != nil {
		return err
	}
	svc := a.Services().Projects

	var pr *registry.Project
	if len(args) == 1 {
		pr, err = resolveProject(svc, args[0])
	} else {
		pr, err = currentProject(svc)
	}
	if err != nil {
		return err
	}

	result, err := op(svc, pr.ID)
	if err != nil {
		return err
	}
	return finishResult(p, result)
}

// finishResult prints a result and turns blocking issues into an error.
func finishResult(p *formatting.Printer, result project.Result) error {
	if p.Structured() {
		if err := p.Print(result, nil); err != nil {
			return err
		}
	} else {
		printResult(p, result)
	}
	if result.NeedsDecision() {
		return &NeedsDecisionError{Summary: result.Summary()}
	}
	return nil
}

func printResult(p *formatting.Printer, result project.Result) {
	for _, e := range result.Created {
		p.Message("created %s", e.String())
	}
	if len(result.Issues) == 0 {
		p.Message("Project structure is complete")
		return
	}
	t := p.NewTable()
	p.Header(t, "DISPOSITION", "KIND", "PATH", "MESSAGE")
	for _, i := range result.Issues {
		t.AppendRow(table.Row{i.Disposition, i.Kind, formatting.OrDash(i.Path), i.Message})
	}
	t.Render()
}

// resolveProject accepts a project id, a unique id prefix or a unique
// case-insensitive name.
func resolveProject(svc *project.Service, ref string) (*registry.Project, error) {
	projects, err := svc.Projects()
	if err != nil {
		return nil, err
	}
	ref = strings.TrimSpace(ref)

	for i := range projects {
		if projects[i].ID == ref {
			return &projects[i], nil
		}
	}

	var matches []*registry.Project
	for i := range projects {
		if strings.EqualFold(projects[i].Name, ref) {
			matches = append(matches, &projects[i])
		}
	}
	if len(matches) == 0 && ref != "" {
		for i := range projects {
			if strings.HasPrefix(projects[i].ID, ref) {
				matches = append(matches, &projects[i])
			}
		}
	}

	switch len(matches) {
	case 0:
		return nil, &registry.NotFoundError{ID: ref}
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%q matches %d projects; use the full id", ref, len(matches))
	}
}

func currentProject(svc *project.Service) (*registry.Project, error) {
	current, err := svc.Current()
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("no project selected; pass a project id or run \"sotugyo project select\"")
	}
	return current, nil
}

func completeProjectIDs(opts *rootOptions) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		a, err := opts.application(cmd)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		ids, err := a.Services().Registry.IDs()
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		return ids, cobra.ShellCompDirectiveNoFileComp
	}
}
