// Package launchconfig provides support for VS Code launch.json debug configurations.
package launchconfig

import (
	"encoding/json"
)

// DebugType is the launch.json "type" of BrightScript configurations.
const DebugType = "brightscript"

// LaunchJSON represents a VS Code launch.json file structure.
type LaunchJSON struct {
	Version        string               `json:"version"`
	Configurations []DebugConfiguration `json:"configurations"`
	Inputs         []InputConfig        `json:"inputs,omitempty"`
}

// DebugConfiguration represents a single debug configuration in launch.json.
type DebugConfiguration struct {
	// Required fields
	Type    string `json:"type"`    // "brightscript"
	Request string `json:"request"` // "launch"
	Name    string `json:"name"`

	// Device
	Host     string `json:"host,omitempty"`
	Password string `json:"password,omitempty"`

	// Project layout
	RootDir           string   `json:"rootDir,omitempty"`
	DebugRootDir      string   `json:"debugRootDir,omitempty"`
	OutDir            string   `json:"outDir,omitempty"`
	StagingFolderPath string   `json:"stagingFolderPath,omitempty"`
	Files             []string `json:"files,omitempty"`

	StopOnEntry         bool   `json:"stopOnEntry,omitempty"`
	ConsoleOutput       string `json:"consoleOutput,omitempty"` // "full" or "normal"
	RetainStagingFolder bool   `json:"retainStagingFolder,omitempty"`

	// Task integration
	PreLaunchTask string `json:"preLaunchTask,omitempty"`
	PostDebugTask string `json:"postDebugTask,omitempty"`

	// All other properties not explicitly defined (extension-specific extras)
	Extra map[string]interface{} `json:"-"`
}

// InputConfig represents a user input variable definition.
type InputConfig struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"` // "promptString", "pickString"
	Description string   `json:"description,omitempty"`
	Default     string   `json:"default,omitempty"`
	Options     []string `json:"options,omitempty"` // For pickString
	Password    bool     `json:"password,omitempty"`
}

// ResolutionContext provides context for variable resolution.
type ResolutionContext struct {
	WorkspaceFolder string            // Root folder of the workspace
	InputValues     map[string]string // Pre-provided values for ${input:} variables
	EnvOverrides    map[string]string // Override environment variables
}

var knownFields = map[string]bool{
	"type": true, "request": true, "name": true,
	"host": true, "password": true,
	"rootDir": true, "debugRootDir": true, "outDir": true,
	"stagingFolderPath": true, "files": true,
	"stopOnEntry": true, "consoleOutput": true, "retainStagingFolder": true,
	"preLaunchTask": true, "postDebugTask": true,
}

// UnmarshalJSON implements custom unmarshaling to capture unknown fields.
func (c *DebugConfiguration) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	type Alias DebugConfiguration
	var alias Alias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*c = DebugConfiguration(alias)

	c.Extra = make(map[string]interface{})
	for key, value := range raw {
		if knownFields[key] {
			continue
		}
		var v interface{}
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		c.Extra[key] = v
	}
	return nil
}

// MarshalJSON implements custom marshaling to include Extra fields.
func (c DebugConfiguration) MarshalJSON() ([]byte, error) {
	type Alias DebugConfiguration
	data, err := json.Marshal(Alias(c))
	if err != nil {
		return nil, err
	}
	if len(c.Extra) == 0 {
		return data, nil
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for k, v := range c.Extra {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

// IsLaunchRequest returns true if this is a launch configuration.
func (c *DebugConfiguration) IsLaunchRequest() bool {
	return c.Request == "launch"
}

// IsBrightScript reports whether the configuration targets this debugger.
func (c *DebugConfiguration) IsBrightScript() bool {
	return c.Type == DebugType
}
