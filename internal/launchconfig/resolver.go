package launchconfig

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/ctagard/brs-dap/internal/errors"
	"github.com/ctagard/brs-dap/pkg/types"
)

// ResolveConfiguration resolves all variables in a configuration and turns it
// into the settings of one debug run. Relative paths are taken relative to
// the workspace folder, and an empty rootDir means the workspace itself.
func ResolveConfiguration(cfg *DebugConfiguration, ctx *ResolutionContext) (*types.LaunchConfig, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is nil")
	}
	if ctx == nil {
		ctx = &ResolutionContext{}
	}

	if missing := ValidateInputsProvided(cfg, ctx.InputValues); len(missing) > 0 {
		return nil, errors.MissingInputs(missing)
	}

	resolved := cfg.Clone()
	for _, field := range resolved.stringFields() {
		value, err := ResolveStringField(*field, ctx)
		if err != nil {
			return nil, errors.ConfigInvalid(cfg.Name, err.Error())
		}
		*field = value
	}
	files, err := ResolveStringSlice(resolved.Files, ctx)
	if err != nil {
		return nil, errors.ConfigInvalid(cfg.Name, fmt.Sprintf("files: %v", err))
	}

	if resolved.RootDir == "" {
		resolved.RootDir = ctx.WorkspaceFolder
	}
	if resolved.RootDir == "" {
		return nil, errors.MissingParameter("rootDir", "Set rootDir to the folder containing the channel manifest.")
	}

	return &types.LaunchConfig{
		Host:                resolved.Host,
		Password:            resolved.Password,
		RootDir:             absolute(resolved.RootDir, ctx.WorkspaceFolder),
		DebugRootDir:        absolute(resolved.DebugRootDir, ctx.WorkspaceFolder),
		OutDir:              absolute(resolved.OutDir, ctx.WorkspaceFolder),
		StagingDir:          absolute(resolved.StagingFolderPath, ctx.WorkspaceFolder),
		Files:               files,
		StopOnEntry:         resolved.StopOnEntry,
		ConsoleOutput:       types.ConsoleOutputMode(resolved.ConsoleOutput),
		RetainStagingFolder: resolved.RetainStagingFolder,
	}, nil
}

func absolute(p, base string) string {
	if p == "" || filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}

// FromLaunchArgs decodes the arguments of a DAP launch request. The IDE has
// usually resolved variables already; any left are resolved against ctx.
func FromLaunchArgs(raw json.RawMessage, ctx *ResolutionContext) (*types.LaunchConfig, error) {
	var cfg DebugConfiguration
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, errors.InvalidParameter("arguments", string(raw), "a JSON launch configuration")
		}
	}
	return ResolveConfiguration(&cfg, ctx)
}

// Clone creates a deep copy of the configuration.
func (c *DebugConfiguration) Clone() *DebugConfiguration {
	// Use JSON round-trip for deep copy
	data, _ := json.Marshal(c)
	var clone DebugConfiguration
	_ = json.Unmarshal(data, &clone) // Error ignored: unmarshal of our own marshaled data should not fail
	return &clone
}

// MergeOverrides applies override values to a configuration.
// This allows command-line flags to override values from launch.json.
func MergeOverrides(cfg *DebugConfiguration, overrides map[string]interface{}) *DebugConfiguration {
	if len(overrides) == 0 {
		return cfg
	}

	result := cfg.Clone()
	for k, v := range overrides {
		switch k {
		case "host":
			if s, ok := v.(string); ok {
				result.Host = s
			}
		case "password":
			if s, ok := v.(string); ok {
				result.Password = s
			}
		case "rootDir":
			if s, ok := v.(string); ok {
				result.RootDir = s
			}
		case "stagingFolderPath":
			if s, ok := v.(string); ok {
				result.StagingFolderPath = s
			}
		case "stopOnEntry":
			if b, ok := v.(bool); ok {
				result.StopOnEntry = b
			}
		case "retainStagingFolder":
			if b, ok := v.(bool); ok {
				result.RetainStagingFolder = b
			}
		case "consoleOutput":
			if s, ok := v.(string); ok {
				result.ConsoleOutput = s
			}
		default:
			if result.Extra == nil {
				result.Extra = make(map[string]interface{})
			}
			result.Extra[k] = v
		}
	}
	return result
}
