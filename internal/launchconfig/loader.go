package launchconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctagard/brs-dap/internal/errors"
)

const (
	// LaunchJSONFileName is the standard name for VS Code launch configuration file.
	LaunchJSONFileName = "launch.json"
	// VSCodeDirName is the VS Code configuration directory name.
	VSCodeDirName = ".vscode"
)

// LoadFromPath loads a launch.json file from an explicit path. Comments and
// trailing commas, which VS Code accepts, are removed before parsing.
func LoadFromPath(path string) (*LaunchJSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read launch.json: %w", err)
	}
	return Parse(data)
}

// Parse decodes launch.json content.
func Parse(data []byte) (*LaunchJSON, error) {
	var lj LaunchJSON
	if err := json.Unmarshal(StripJSONC(data), &lj); err != nil {
		return nil, fmt.Errorf("failed to parse launch.json: %w", err)
	}
	return &lj, nil
}

// StripJSONC removes // and /* */ comments and trailing commas outside of
// strings.
func StripJSONC(data []byte) []byte {
	out := make([]byte, 0, len(data))
	inString, escaped := false, false

	for i := 0; i < len(data); i++ {
		ch := data[i]
		if inString {
			out = append(out, ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch {
		case ch == '"':
			inString = true
			out = append(out, ch)
		case ch == '/' && i+1 < len(data) && data[i+1] == '/':
			for i < len(data) && data[i] != '\n' {
				i++
			}
			if i < len(data) {
				out = append(out, '\n')
			}
		case ch == '/' && i+1 < len(data) && data[i+1] == '*':
			i += 2
			for i+1 < len(data) && !(data[i] == '*' && data[i+1] == '/') {
				i++
			}
			i++
		case ch == ']' || ch == '}':
			out = trimTrailingComma(out)
			out = append(out, ch)
		default:
			out = append(out, ch)
		}
	}
	return out
}

func trimTrailingComma(out []byte) []byte {
	j := len(out) - 1
	for j >= 0 && strings.ContainsRune(" \t\r\n", rune(out[j])) {
		j--
	}
	if j >= 0 && out[j] == ',' {
		return append(out[:j], out[j+1:]...)
	}
	return out
}

// Discover searches for a .vscode/launch.json file starting from the given path
// and walking up the directory tree until found or reaching the root.
func Discover(startPath string) (string, error) {
	if startPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		startPath = cwd
	}

	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat path: %w", err)
	}
	if !info.IsDir() {
		absPath = filepath.Dir(absPath)
	}

	current := absPath
	for {
		launchPath := filepath.Join(current, VSCodeDirName, LaunchJSONFileName)
		if _, err := os.Stat(launchPath); err == nil {
			return launchPath, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return "", fmt.Errorf("no %s/%s found in %s or parent directories", VSCodeDirName, LaunchJSONFileName, startPath)
}

// LoadAndDiscover combines discovery and loading: finds a launch.json from the start path
// and loads it.
func LoadAndDiscover(startPath string) (*LaunchJSON, string, error) {
	path, err := Discover(startPath)
	if err != nil {
		return nil, "", err
	}

	lj, err := LoadFromPath(path)
	if err != nil {
		return nil, "", err
	}

	return lj, path, nil
}

// FindConfiguration finds a configuration by name in the LaunchJSON.
func FindConfiguration(lj *LaunchJSON, name string) (*DebugConfiguration, error) {
	for i := range lj.Configurations {
		if lj.Configurations[i].Name == name {
			return &lj.Configurations[i], nil
		}
	}
	return nil, errors.ConfigNotFound(name, ListConfigurationNames(lj))
}

// ListConfigurationNames returns a list of all configuration names.
func ListConfigurationNames(lj *LaunchJSON) []string {
	names := make([]string, len(lj.Configurations))
	for i, cfg := range lj.Configurations {
		names[i] = cfg.Name
	}
	return names
}

// ConfigurationInfo provides summary information about a configuration.
type ConfigurationInfo struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Request string `json:"request"`
	Host    string `json:"host,omitempty"`
	RootDir string `json:"rootDir,omitempty"`
}

// ListConfigurations returns summary information about all configurations.
func ListConfigurations(lj *LaunchJSON) []ConfigurationInfo {
	infos := make([]ConfigurationInfo, len(lj.Configurations))
	for i, cfg := range lj.Configurations {
		infos[i] = ConfigurationInfo{
			Name:    cfg.Name,
			Type:    cfg.Type,
			Request: cfg.Request,
			Host:    cfg.Host,
			RootDir: cfg.RootDir,
		}
	}
	return infos
}

// FindInput finds an input configuration by ID.
func FindInput(lj *LaunchJSON, id string) (*InputConfig, error) {
	for i := range lj.Inputs {
		if lj.Inputs[i].ID == id {
			return &lj.Inputs[i], nil
		}
	}
	return nil, fmt.Errorf("input %q not found", id)
}

// DefaultInputValues returns the declared defaults of every input, for
// callers that cannot prompt.
func DefaultInputValues(lj *LaunchJSON) map[string]string {
	values := make(map[string]string)
	for _, in := range lj.Inputs {
		switch {
		case in.Default != "":
			values[in.ID] = in.Default
		case in.Type == "pickString" && len(in.Options) > 0:
			values[in.ID] = in.Options[0]
		}
	}
	return values
}

// GetWorkspaceFolder derives the workspace folder from the launch.json path.
// The workspace folder is the parent of the .vscode directory.
func GetWorkspaceFolder(launchJSONPath string) string {
	return filepath.Dir(filepath.Dir(launchJSONPath))
}

// ValidateConfiguration performs basic validation on a configuration.
func ValidateConfiguration(cfg *DebugConfiguration) error {
	if cfg.Name == "" {
		return errors.ConfigInvalid("", "configuration name is required")
	}
	if !cfg.IsBrightScript() {
		return errors.ConfigInvalid(cfg.Name, fmt.Sprintf("type must be %q, got %q", DebugType, cfg.Type))
	}
	if !cfg.IsLaunchRequest() {
		return errors.ConfigInvalid(cfg.Name, fmt.Sprintf("request must be 'launch', got %q", cfg.Request))
	}
	switch cfg.ConsoleOutput {
	case "", "full", "normal":
	default:
		return errors.ConfigInvalid(cfg.Name, fmt.Sprintf("consoleOutput must be 'full' or 'normal', got %q", cfg.ConsoleOutput))
	}
	return nil
}

// ValidateLaunchJSON performs validation on the entire launch.json. Only
// BrightScript configurations are checked; others belong to other debuggers.
func ValidateLaunchJSON(lj *LaunchJSON) []error {
	var errs []error
	seen := make(map[string]bool)
	for i := range lj.Configurations {
		cfg := &lj.Configurations[i]
		if seen[cfg.Name] {
			errs = append(errs, fmt.Errorf("configuration[%d]: duplicate name %q", i, cfg.Name))
		}
		seen[cfg.Name] = true
		if !cfg.IsBrightScript() {
			continue
		}
		if err := ValidateConfiguration(cfg); err != nil {
			errs = append(errs, fmt.Errorf("configuration[%d]: %w", i, err))
		}
	}
	return errs
}
