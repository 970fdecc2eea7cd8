package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"sotugyo/internal/formatting"
	"sotugyo/internal/project"
	"sotugyo/internal/registry"
	"sotugyo/internal/settings"
)

const maskedValue = "********"

func newSettingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change per-project settings",
	}
	cmd.AddCommand(newSettingsShowCmd(opts), newSettingsSetCmd(opts))
	return cmd
}

func newSettingsShowCmd(opts *rootOptions) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:               "show [id]",
		Short:             "Show a project's settings",
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
			svc := a.Services().Projects
			pr, err := projectFromArgs(svc, args, 0)
			if err != nil {
				return err
			}
			st, err := svc.LoadSettings(pr.ID)
			if err != nil {
				return err
			}

			values := st.Map()
			if !reveal {
				maskPassword(values)
			}
			return p.Print(values, func(t table.Writer) {
				p.Header(t, "KEY", "VALUE")
				for _, kv := range flattenSettings("", values) {
					t.AppendRow(table.Row{kv[0], kv[1]})
				}
			})
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Show the remembered password in clear text")
	return cmd
}

func newSettingsSetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value> [id]",
		Short: "Set a settings value",
		Long: `Set a settings value by dotted key, for example "launcher.theme".

The value is parsed as a YAML scalar, so "true", "3" and "1.5" are stored as
boolean and numbers. Quote the value to store a string.`,
		Args: cobra.RangeArgs(2, 3),
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
			pr, err := projectFromArgs(svc, args, 2)
			if err != nil {
				return err
			}
			st, err := svc.LoadSettings(pr.ID)
			if err != nil {
				return err
			}
			if err := st.Set(args[0], parseScalar(args[1])); err != nil {
				return err
			}
			if err := svc.SaveSettings(pr.ID, st); err != nil {
				return err
			}
			p.Message("Saved %s for project %q", args[0], pr.Name)
			return nil
		},
	}
}

// projectFromArgs resolves args[i] as a project reference, or the current
// project when the argument is absent.
func projectFromArgs(svc *project.Service, args []string, i int) (*registry.Project, error) {
	if len(args) > i {
		return resolveProject(svc, args[i])
	}
	return currentProject(svc)
}

func parseScalar(raw string) interface{} {
	var v interface{}
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	switch v.(type) {
	case bool, int, float64, string:
		return v
	case nil:
		if raw == "" {
			return ""
		}
		return nil
	default:
		return raw
	}
}

func maskPassword(values map[string]interface{}) {
	if lu, ok := values[settings.KeyLastUser].(map[string]interface{}); ok {
		if _, has := lu["password"]; has {
			lu["password"] = maskedValue
		}
	}
}

// flattenSettings turns nested maps into sorted dotted key/value pairs.
func flattenSettings(prefix string, m map[string]interface{}) [][2]string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out [][2]string
	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := m[k].(type) {
		case map[string]interface{}:
			out = append(out, flattenSettings(key, v)...)
		case []interface{}:
			parts := make([]string, len(v))
			for i, item := range v {
				parts[i] = fmt.Sprint(item)
			}
			out = append(out, [2]string{key, "[" + strings.Join(parts, ", ") + "]"})
		case nil:
			out = append(out, [2]string{key, formatting.OrDash("")})
		default:
			out = append(out, [2]string{key, fmt.Sprint(v)})
		}
	}
	return out
}
