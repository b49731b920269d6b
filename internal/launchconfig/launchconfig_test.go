package launchconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctagard/brs-dap/internal/errors"
	"github.com/ctagard/brs-dap/pkg/types"
)

const sampleLaunchJSON = `{
	// VS Code allows comments
	"version": "0.2.0",
	"configurations": [
		{
			"type": "brightscript",
			"request": "launch",
			"name": "BrightScript Debug: Launch",
			"host": "${env:ROKU_HOST}",
			"password": "${input:password}",
			"rootDir": "${workspaceFolder}/dist",
			"debugRootDir": "${workspaceFolder}/src",
			"stopOnEntry": false,
			"consoleOutput": "full",
			"enableDebuggerAutoRecovery": true, /* extension setting */
		},
		{
			"type": "node",
			"request": "launch",
			"name": "Build script",
			"program": "${workspaceFolder}/build.js"
		}
	],
	"inputs": [
		{"id": "password", "type": "promptString", "description": "Device password", "default": "rokudev", "password": true}
	]
}`

func writeLaunchJSON(t *testing.T, content string) (workspace, path string) {
	t.Helper()
	workspace = t.TempDir()
	dir := filepath.Join(workspace, VSCodeDirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path = filepath.Join(dir, LaunchJSONFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return workspace, path
}

// TestLoadFromPath verifies that launch.json files with comments and
// trailing commas are loaded.
func TestLoadFromPath(t *testing.T) {
	_, path := writeLaunchJSON(t, sampleLaunchJSON)

	lj, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "0.2.0", lj.Version)
	require.Len(t, lj.Configurations, 2)

	cfg := lj.Configurations[0]
	assert.True(t, cfg.IsBrightScript())
	assert.True(t, cfg.IsLaunchRequest())
	assert.Equal(t, "full", cfg.ConsoleOutput)
	assert.Equal(t, true, cfg.Extra["enableDebuggerAutoRecovery"])
	assert.NotContains(t, cfg.Extra, "host")

	assert.False(t, lj.Configurations[1].IsBrightScript())
	assert.Equal(t, "${workspaceFolder}/build.js", lj.Configurations[1].Extra["program"])
}

func TestLoadFromPath_InvalidJSON(t *testing.T) {
	_, path := writeLaunchJSON(t, `{invalid json`)
	_, err := LoadFromPath(path)
	assert.ErrorContains(t, err, "failed to parse launch.json")
}

func TestStripJSONC(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"line comment", "{\"a\": 1 // one\n}", "{\"a\": 1 \n}"},
		{"block comment", `{/* x */"a": 1}`, `{"a": 1}`},
		{"trailing comma", "[1, 2,\n]", "[1, 2\n]"},
		{"slashes in string", `{"url": "http://host//x", "s": "a,]"}`, `{"url": "http://host//x", "s": "a,]"}`},
		{"escaped quote", `{"s": "say \"//hi\""}`, `{"s": "say \"//hi\""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(StripJSONC([]byte(tt.in))))
		})
	}
}

func TestDiscover(t *testing.T) {
	workspace, path := writeLaunchJSON(t, sampleLaunchJSON)
	nested := filepath.Join(workspace, "src", "source")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := Discover(nested)
	require.NoError(t, err)
	assert.Equal(t, path, found)
	assert.Equal(t, workspace, GetWorkspaceFolder(found))

	_, err = Discover(t.TempDir())
	assert.Error(t, err)
}

func TestFindConfiguration(t *testing.T) {
	lj, err := Parse([]byte(sampleLaunchJSON))
	require.NoError(t, err)

	cfg, err := FindConfiguration(lj, "BrightScript Debug: Launch")
	require.NoError(t, err)
	assert.Equal(t, "${env:ROKU_HOST}", cfg.Host)

	_, err = FindConfiguration(lj, "nope")
	assert.True(t, errors.HasCode(err, errors.CodeConfigNotFound))
	assert.Contains(t, err.Error(), "Build script")
}

func TestResolveVariables(t *testing.T) {
	ctx := &ResolutionContext{
		WorkspaceFolder: "/work/app",
		InputValues:     map[string]string{"password": "secret"},
		EnvOverrides:    map[string]string{"ROKU_HOST": "10.0.0.5"},
	}

	tests := []struct {
		in   string
		want string
	}{
		{"${workspaceFolder}/dist", "/work/app/dist"},
		{"${workspaceFolderBasename}", "app"},
		{"${env:ROKU_HOST}", "10.0.0.5"},
		{"${input:password}", "secret"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		got, err := ResolveVariables(tt.in, ctx)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	got, err := ResolveVariables("${input:other}", ctx)
	assert.Error(t, err)
	assert.Equal(t, "${input:other}", got)

	_, err = ResolveVariables("${command:pickHost}", ctx)
	assert.ErrorContains(t, err, "unknown variable")
}

func TestResolveConfigVariable(t *testing.T) {
	workspace, _ := writeLaunchJSON(t, sampleLaunchJSON)
	settings := `{
		// workspace settings
		"brightscript.debug.host": "192.168.1.20",
		"roku": {"password": "nested"},
	}`
	require.NoError(t, os.WriteFile(filepath.Join(workspace, VSCodeDirName, "settings.json"), []byte(settings), 0o644))

	ctx := &ResolutionContext{WorkspaceFolder: workspace}
	host, err := ResolveVariables("${config:brightscript.debug.host}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20", host)

	pw, err := ResolveVariables("${config:roku.password}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "nested", pw)

	missing, err := ResolveVariables("${config:roku.nothing}", ctx)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestResolveConfiguration(t *testing.T) {
	lj, err := Parse([]byte(sampleLaunchJSON))
	require.NoError(t, err)
	cfg, err := FindConfiguration(lj, "BrightScript Debug: Launch")
	require.NoError(t, err)

	_, err = ResolveConfiguration(cfg, &ResolutionContext{WorkspaceFolder: "/work/app"})
	assert.True(t, errors.HasCode(err, errors.CodeMissingInputs))

	got, err := ResolveConfiguration(cfg, &ResolutionContext{
		WorkspaceFolder: "/work/app",
		InputValues:     DefaultInputValues(lj),
		EnvOverrides:    map[string]string{"ROKU_HOST": "10.0.0.5"},
	})
	require.NoError(t, err)
	assert.Equal(t, &types.LaunchConfig{
		Host:          "10.0.0.5",
		Password:      "rokudev",
		RootDir:       "/work/app/dist",
		DebugRootDir:  "/work/app/src",
		ConsoleOutput: types.ConsoleOutputFull,
	}, got)

	// the source configuration is left untouched
	assert.Equal(t, "${env:ROKU_HOST}", cfg.Host)
}

func TestResolveConfiguration_Defaults(t *testing.T) {
	cfg := &DebugConfiguration{
		Type: DebugType, Request: "launch", Name: "x", Host: "h",
		StagingFolderPath: "out/.staging", Files: []string{"manifest", "${env:EXTRA_GLOB}"},
	}
	got, err := ResolveConfiguration(cfg, &ResolutionContext{
		WorkspaceFolder: "/work/app",
		EnvOverrides:    map[string]string{"EXTRA_GLOB": "source/**/*"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/work/app", got.RootDir)
	assert.Equal(t, filepath.Join("/work/app", "out", ".staging"), got.StagingDir)
	assert.Equal(t, []string{"manifest", "source/**/*"}, got.Files)

	_, err = ResolveConfiguration(&DebugConfiguration{Host: "h"}, nil)
	assert.True(t, errors.HasCode(err, errors.CodeMissingParameter))
}

func TestFromLaunchArgs(t *testing.T) {
	raw := []byte(`{"type":"brightscript","request":"launch","host":"10.0.0.9","rootDir":"/abs/app","stopOnEntry":true,"retainStagingFolder":true,"__sessionId":"abc"}`)
	got, err := FromLaunchArgs(raw, nil)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.9", got.Host)
	assert.Equal(t, "/abs/app", got.RootDir)
	assert.True(t, got.StopOnEntry)
	assert.True(t, got.RetainStagingFolder)

	_, err = FromLaunchArgs([]byte(`[1,2]`), nil)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))
}

func TestMergeOverrides(t *testing.T) {
	cfg := &DebugConfiguration{Type: DebugType, Request: "launch", Name: "x", Host: "a"}
	merged := MergeOverrides(cfg, map[string]interface{}{
		"host":        "b",
		"stopOnEntry": true,
		"custom":      1,
	})
	assert.Equal(t, "b", merged.Host)
	assert.True(t, merged.StopOnEntry)
	assert.EqualValues(t, 1, merged.Extra["custom"])
	assert.Equal(t, "a", cfg.Host)

	assert.Same(t, cfg, MergeOverrides(cfg, nil))
}

func TestValidateInputsProvided(t *testing.T) {
	cfg := &DebugConfiguration{
		Host:     "${input:host}",
		Password: "${input:password}",
		RootDir:  "${input:host}/x",
		Files:    []string{"${input:glob}"},
	}
	assert.Equal(t, []string{"host", "password", "glob"}, FindAllRequiredInputsInConfig(cfg))
	assert.Equal(t, []string{"glob"}, ValidateInputsProvided(cfg, map[string]string{"host": "1", "password": "2"}))
}

func TestValidateConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		cfg     DebugConfiguration
		wantErr bool
	}{
		{"valid", DebugConfiguration{Type: DebugType, Request: "launch", Name: "ok"}, false},
		{"missing name", DebugConfiguration{Type: DebugType, Request: "launch"}, true},
		{"wrong type", DebugConfiguration{Type: "python", Request: "launch", Name: "py"}, true},
		{"attach", DebugConfiguration{Type: DebugType, Request: "attach", Name: "a"}, true},
		{"bad console", DebugConfiguration{Type: DebugType, Request: "launch", Name: "c", ConsoleOutput: "verbose"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfiguration(&tt.cfg)
			if tt.wantErr {
				assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateLaunchJSON(t *testing.T) {
	lj := &LaunchJSON{Configurations: []DebugConfiguration{
		{Type: DebugType, Request: "launch", Name: "a"},
		{Type: "node", Request: "attach", Name: "b"},
		{Type: DebugType, Request: "attach", Name: "a"},
	}}
	errs := ValidateLaunchJSON(lj)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "duplicate")
}

func TestListConfigurations(t *testing.T) {
	lj, err := Parse([]byte(sampleLaunchJSON))
	require.NoError(t, err)

	infos := ListConfigurations(lj)
	require.Len(t, infos, 2)
	assert.Equal(t, ConfigurationInfo{
		Name: "BrightScript Debug: Launch", Type: DebugType, Request: "launch",
		Host: "${env:ROKU_HOST}", RootDir: "${workspaceFolder}/dist",
	}, infos[0])
	assert.Equal(t, []string{"BrightScript Debug: Launch", "Build script"}, ListConfigurationNames(lj))

	in, err := FindInput(lj, "password")
	require.NoError(t, err)
	assert.True(t, in.Password)
}
