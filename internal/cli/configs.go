package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ctagard/brs-dap/internal/launchconfig"
)

func newConfigsCmd(a *app) *cobra.Command {
	var (
		workspace  string
		launchJSON string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "configs",
		Short: "List the configurations in launch.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lj, path, err := loadLaunchJSON(workspace, launchJSON)
			if err != nil {
				return err
			}
			infos := launchconfig.ListConfigurations(lj)
			problems := launchconfig.ValidateLaunchJSON(lj)
			for _, p := range problems {
				a.logger.Warn("launch.json problem", "path", path, "error", p)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"path":           path,
					"configurations": infos,
				})
			}

			fmt.Fprintf(out, "%s\n\n", path)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTYPE\tREQUEST\tHOST\tROOT")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", info.Name, info.Type, info.Request, dash(info.Host), dash(info.RootDir))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&workspace, "workspace", ".", "Folder to search for .vscode/launch.json")
	cmd.Flags().StringVar(&launchJSON, "launch-json", "", "Path to launch.json (overrides discovery)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
