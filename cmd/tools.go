package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"sotugyo/internal/catalog"
	"sotugyo/internal/cli"
	"sotugyo/internal/events"
	"sotugyo/internal/formatting"
	"sotugyo/internal/launch"
	"sotugyo/pkg/logging"
	pkgstrings "sotugyo/pkg/strings"
)

func newToolsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tools",
		Aliases: []string{"tool", "packages"},
		Short:   "Inspect the tool package catalog",
	}
	cmd.AddCommand(
		newToolsScanCmd(opts),
		newToolsListCmd(opts),
		newToolsShowCmd(opts),
		newToolsWatchCmd(opts),
		newToolsLogsCmd(opts),
		newToolsRegisterCmd(opts),
		newToolsUnregisterCmd(opts),
		newToolsRegisteredCmd(opts),
	)
	return cmd
}

// refreshCatalog rescans the package roots behind a spinner.
func refreshCatalog(cmd *cobra.Command, opts *rootOptions, store *catalog.Store) *catalog.Catalog {
	progress := cli.StartProgress(cmd.ErrOrStderr(), "Scanning package roots...", opts.quiet)
	cat := store.Refresh(cmd.Context())
	if cat.Cancelled() {
		progress.Fail("Scan cancelled")
	} else {
		progress.Stop("")
	}
	return cat
}

func newToolsScanCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan package roots and report problems",
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
			cat := refreshCatalog(cmd, opts, a.Services().Catalog)

			diags := cat.Diagnostics()
			summary := struct {
				Roots       []string             `json:"roots"`
				Packages    int                  `json:"packages"`
				Diagnostics []catalog.Diagnostic `json:"diagnostics"`
			}{cat.Roots(), cat.Len(), diags}
			if summary.Diagnostics == nil {
				summary.Diagnostics = []catalog.Diagnostic{}
			}

			if p.Structured() {
				return p.Print(summary, nil)
			}
			p.Message("Found %d package(s) in %d root(s)", cat.Len(), len(cat.Roots()))
			if len(diags) == 0 {
				return nil
			}
			return p.Print(diags, func(t table.Writer) {
				p.Header(t, "KIND", "PATH", "MESSAGE")
				for _, d := range diags {
					t.AppendRow(table.Row{d.Kind, formatting.OrDash(d.Path), d.Message})
				}
			})
		},
	}
}

func newToolsListCmd(opts *rootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available tool packages",
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
			cat := refreshCatalog(cmd, opts, a.Services().Catalog)

			pkgs := cat.Latest()
			if all {
				pkgs = cat.Packages()
			}
			if pkgs == nil {
				pkgs = []catalog.Package{}
			}
			return p.Print(pkgs, func(t table.Writer) {
				p.Header(t, "NAME", "VERSION", "STATUS", "EXECUTABLE", "DESCRIPTION")
				for _, pkg := range pkgs {
					t.AppendRow(table.Row{
						pkg.Name,
						pkg.Version,
						packageStatus(pkg),
						formatting.OrDash(pkg.Executable),
						formatting.OrDash(pkgstrings.Summary(pkg.Description, pkgstrings.DefaultDescriptionMaxLen)),
					})
				}
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "List every version, not only the highest")
	return cmd
}

func packageStatus(pkg catalog.Package) string {
	if pkg.Unresolved {
		return "unresolved"
	}
	return "ready"
}

func newToolsShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name> [version]",
		Short: "Show one tool package",
		Args:  cobra.RangeArgs(1, 2),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			a, err := opts.application(cmd)
			if err != nil {
				return nil, cobra.ShellCompDirectiveError
			}
			cat := a.Services().Catalog.Refresh(cmd.Context())
			if len(args) == 0 {
				return cat.Names(), cobra.ShellCompDirectiveNoFileComp
			}
			return cat.Versions(args[0]), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.application(cmd)
			if err != nil {
				return err
			}
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			cat := refreshCatalog(cmd, opts, a.Services().Catalog)

			version := ""
			if len(args) == 2 {
				version = args[1]
			}
			pkg, ok := cat.Lookup(args[0], version)
			if !ok {
				return notFoundIn(cat, args[0], version)
			}
			if p.Structured() {
				return p.Print(pkg, nil)
			}

			rows := [][2]string{
				{"name", pkg.Name},
				{"version", pkg.Version},
				{"status", packageStatus(*pkg)},
				{"executable", formatting.OrDash(pkg.Executable)},
				{"resolved by", formatting.OrDash(string(pkg.ResolvedBy))},
				{"root", pkg.Root},
				{"descriptor", pkg.Descriptor},
				{"other versions", formatting.OrDash(strings.Join(otherVersions(cat, pkg), ", "))},
			}
			if len(pkg.Tools) > 0 {
				rows = append(rows, [2]string{"tools", strings.Join(pkg.Tools, ", ")})
			}
			p.KeyValues(rows)
			if pkg.Description != "" {
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderMarkdown(cmd.OutOrStdout(), pkg.Description))
			}
			return nil
		},
	}
}

func otherVersions(cat *catalog.Catalog, pkg *catalog.Package) []string {
	var out []string
	for _, v := range cat.Versions(pkg.Name) {
		if v != pkg.Version {
			out = append(out, v)
		}
	}
	return out
}

func newToolsWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Rescan the catalog whenever package roots change",
		Long: `Watch the package roots and rescan whenever a descriptor or package
directory changes. Runs until interrupted. When started by systemd the
command reports readiness through sd_notify.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.application(cmd)
			if err != nil {
				return err
			}
			p, err := opts.printer(cmd)
			if err != nil {
				return err
			}
			svc := a.Services()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			updates, cancel := svc.Bus.Subscribe(16)
			defer cancel()

			cat := svc.Catalog.Refresh(ctx)
			p.Message("Watching %d root(s), %d package(s) available", len(svc.Catalog.Roots()), cat.Len())
			drainEvents(updates)

			watcher := catalog.NewWatcher(svc.Catalog.Roots(), a.Settings().Packages.WatchDebounce)
			changes := make(chan catalog.ChangeEvent, 16)
			if err := watcher.Start(ctx, changes); err != nil {
				return fmt.Errorf("failed to start watcher: %w", err)
			}
			go svc.Catalog.Watch(ctx, changes)

			if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
				logging.Warn("CLI", "Failed to notify systemd: %v", err)
			} else if sent {
				logging.Debug("CLI", "Notified systemd that the watcher is ready")
			}

			for {
				select {
				case <-ctx.Done():
					_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
					if err := watcher.Stop(); err != nil {
						logging.Warn("CLI", "Failed to stop watcher: %v", err)
					}
					p.Message("Stopped watching")
					return nil
				case ev := <-updates:
					printCatalogEvent(p, ev)
				}
			}
		},
	}
}

// drainEvents discards events that are already queued.
func drainEvents(ch <-chan events.Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func printCatalogEvent(p *formatting.Printer, ev events.Event) {
	if ev.Kind != events.KindCatalogUpdated {
		return
	}
	if p.Structured() {
		_ = p.Print(struct {
			Reason  events.EventReason `json:"reason"`
			Message string             `json:"message"`
			Time    string             `json:"time"`
		}{ev.Reason, ev.Message, formatting.FormatTime(ev.Time)}, nil)
		return
	}
	p.Message("%s %s", formatting.FormatTime(ev.Time), ev.Message)
}

func newToolsLogsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Manage launch logs",
	}

	var keep int
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete old launch logs, keeping the newest per package",
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
			if !cmd.Flags().Changed("keep") {
				keep = a.Settings().Launch.LogRetention
			}
			removed, err := launch.Prune(a.Services().LaunchLogDir, keep)
			if err != nil {
				return err
			}
			if removed == nil {
				removed = []string{}
			}
			if p.Structured() {
				return p.Print(removed, nil)
			}
			for _, path := range removed {
				p.Message("removed %s", path)
			}
			p.Message("Removed %d log file(s) from %s", len(removed), a.Services().LaunchLogDir)
			return nil
		},
	}
	prune.Flags().IntVar(&keep, "keep", 0, "Logs to keep per package and version (default from config)")
	cmd.AddCommand(prune)
	return cmd
}

// notFoundIn builds a not-found error that lists the versions that do exist.
func notFoundIn(cat *catalog.Catalog, name, version string) error {
	err := &launch.PackageNotFoundError{Name: name, Version: version}
	if versions := cat.Versions(name); len(versions) > 0 {
		err.Reason = "available versions: " + strings.Join(versions, ", ")
	}
	return err
}
