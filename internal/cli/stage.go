package cli

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ctagard/brs-dap/internal/deploy"
	"github.com/ctagard/brs-dap/internal/errors"
	"github.com/ctagard/brs-dap/internal/launchconfig"
	"github.com/ctagard/brs-dap/internal/session"
	"github.com/ctagard/brs-dap/pkg/types"
)

func newStageCmd(a *app) *cobra.Command {
	var (
		workspace  string
		launchJSON string
		name       string
		breaks     []string
		inputs      map[string]string
		staging     string
		host        string
		stopOnEntry bool
	)

	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Stage and package a channel with breakpoints, without a device",
		Long: `Run the launch steps of a launch.json configuration up to the point
where a device would be contacted: stage the files, place the entry
breakpoint, inject STOP statements and build the package.

The staging folder is kept so the injected sources can be inspected.`,
		Example: `  brs-dap stage --name "Debug channel" --break source/main.brs:12
  brs-dap stage --workspace ~/src/channel --input host=192.168.1.20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lj, path, err := loadLaunchJSON(workspace, launchJSON)
			if err != nil {
				return err
			}
			dc, err := pickConfiguration(lj, name)
			if err != nil {
				return err
			}

			values := launchconfig.DefaultInputValues(lj)
			for k, v := range inputs {
				if _, err := launchconfig.FindInput(lj, k); err != nil {
					return errors.InvalidParameter("input", k, "an input id declared in launch.json")
				}
				values[k] = v
			}

			overrides := map[string]interface{}{"retainStagingFolder": true}
			if staging != "" {
				abs, err := filepath.Abs(staging)
				if err != nil {
					return err
				}
				overrides["stagingFolderPath"] = abs
			}
			if cmd.Flags().Changed("host") {
				overrides["host"] = host
			}
			if cmd.Flags().Changed("stop-on-entry") {
				overrides["stopOnEntry"] = stopOnEntry
			}
			dc = launchconfig.MergeOverrides(dc, overrides)

			cfg, err := launchconfig.ResolveConfiguration(dc, &launchconfig.ResolutionContext{
				WorkspaceFolder: launchconfig.GetWorkspaceFolder(path),
				InputValues:     values,
			})
			if err != nil {
				return err
			}

			bps, err := parseBreaks(breaks, cfg.ClientRoot())
			if err != nil {
				return err
			}

			p := &session.Pipeline{
				Deployer: deploy.NewLocalDeployer(a.cfg.Files, a.logger),
				Logger:   a.logger,
			}
			prep, all, err := p.DryRun(cmd.Context(), *cfg, bps)
			if err != nil {
				return err
			}

			printStage(cmd, dc.Name, cfg.Host, prep, all)
			return nil
		},
	}

	cmd.Flags().StringVar(&workspace, "workspace", ".", "Folder to search for .vscode/launch.json")
	cmd.Flags().StringVar(&launchJSON, "launch-json", "", "Path to launch.json (overrides discovery)")
	cmd.Flags().StringVar(&name, "name", "", "Configuration name (default: the first brightscript launch configuration)")
	cmd.Flags().StringArrayVar(&breaks, "break", nil, "Breakpoint as file:line, relative to rootDir; repeatable")
	cmd.Flags().StringToStringVar(&inputs, "input", nil, "Value for an ${input:id} variable, as id=value")
	cmd.Flags().StringVar(&staging, "staging", "", "Staging folder (default: the configuration's or a temporary folder)")
	cmd.Flags().StringVar(&host, "host", "", "Device address, overriding the configuration's host")
	cmd.Flags().BoolVar(&stopOnEntry, "stop-on-entry", false, "Override the configuration's stopOnEntry")

	return cmd
}

// loadLaunchJSON loads path, or discovers launch.json from workspace. The
// returned path is absolute so everything derived from it is too.
func loadLaunchJSON(workspace, path string) (*launchconfig.LaunchJSON, string, error) {
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, "", err
		}
		lj, err := launchconfig.LoadFromPath(abs)
		return lj, abs, err
	}
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, "", err
	}
	return launchconfig.LoadAndDiscover(abs)
}

// pickConfiguration returns the named configuration, or the first
// brightscript launch configuration when name is empty.
func pickConfiguration(lj *launchconfig.LaunchJSON, name string) (*launchconfig.DebugConfiguration, error) {
	if name != "" {
		dc, err := launchconfig.FindConfiguration(lj, name)
		if err != nil {
			return nil, err
		}
		if err := launchconfig.ValidateConfiguration(dc); err != nil {
			return nil, err
		}
		return dc, nil
	}
	for i := range lj.Configurations {
		dc := &lj.Configurations[i]
		if dc.IsBrightScript() && dc.IsLaunchRequest() {
			return dc, nil
		}
	}
	return nil, errors.ConfigNotFound("", launchconfig.ListConfigurationNames(lj))
}

// parseBreaks turns file:line flags into lines keyed by absolute client path.
func parseBreaks(flags []string, root string) (map[string][]int, error) {
	out := make(map[string][]int)
	for _, f := range flags {
		i := strings.LastIndex(f, ":")
		if i <= 0 {
			return nil, errors.InvalidParameter("break", f, "file:line")
		}
		line, err := strconv.Atoi(f[i+1:])
		if err != nil || line < 1 {
			return nil, errors.InvalidParameter("break", f, "file:line with a positive line number")
		}
		file := filepath.FromSlash(f[:i])
		if !filepath.IsAbs(file) {
			file = filepath.Join(root, file)
		}
		out[file] = append(out[file], line)
	}
	return out, nil
}

func printStage(cmd *cobra.Command, name, host string, prep *session.Prepared, all map[string][]types.Breakpoint) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Configuration: %s\n", name)
	if host != "" {
		fmt.Fprintf(w, "Host:          %s\n", host)
	}
	fmt.Fprintf(w, "Staging:       %s\n", prep.StagingDir)
	fmt.Fprintf(w, "Package:       %s\n", prep.Package)
	fmt.Fprintf(w, "Entry:         %s in %s\n", prep.Entry.Routine, prep.EntryPath)
	fmt.Fprintf(w, "Injected:      %d\n", prep.Injected)

	paths := make([]string, 0, len(all))
	for p := range all {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		for _, bp := range all[p] {
			marker := ""
			if bp.Entry {
				marker = " (entry)"
			}
			fmt.Fprintf(w, "  %s:%d%s\n", p, bp.Line, marker)
		}
	}
}
