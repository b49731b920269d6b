package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctagard/brs-dap/internal/errors"
	"github.com/ctagard/brs-dap/internal/version"
)

const launchJSON = `{
	// channel configurations
	"version": "0.2.0",
	"configurations": [
		{
			"name": "Attach node",
			"type": "node",
			"request": "attach"
		},
		{
			"name": "Debug channel",
			"type": "brightscript",
			"request": "launch",
			"host": "${input:host}",
			"rootDir": "${workspaceFolder}",
			"outDir": "${workspaceFolder}/out",
		},
	],
	"inputs": [
		{"id": "host", "type": "promptString", "default": "192.168.1.20"}
	]
}`

func writeWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for rel, body := range map[string]string{
		".vscode/launch.json": launchJSON,
		"manifest":            "title=demo\n",
		"source/main.brs":     "sub Main()\n  a = 1\n  b = 2\n  c = 3\n  print a\nend sub\n",
	} {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
	}
	return root
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStage(t *testing.T) {
	root := writeWorkspace(t)
	staging := filepath.Join(t.TempDir(), "staging")

	out, err := run(t, "stage", "--workspace", root, "--staging", staging, "--break", "source/main.brs:5")
	require.NoError(t, err)

	assert.Contains(t, out, "Configuration: Debug channel")
	assert.Contains(t, out, "Host:          192.168.1.20")
	assert.Contains(t, out, "Staging:       "+staging)
	assert.Contains(t, out, "Entry:         Main in ")
	assert.Contains(t, out, "Injected:      2")
	assert.Contains(t, out, "main.brs:2 (entry)")
	assert.Contains(t, out, "main.brs:5\n")

	staged, err := os.ReadFile(filepath.Join(staging, "source", "main.brs"))
	require.NoError(t, err)
	assert.Contains(t, string(staged), "STOP")
	assert.FileExists(t, filepath.Join(root, "out", "channel.zip"))
}

func TestStageOverrides(t *testing.T) {
	root := writeWorkspace(t)
	staging := filepath.Join(t.TempDir(), "staging")

	out, err := run(t, "stage", "--workspace", root, "--staging", staging,
		"--host", "10.0.0.9", "--input", "host=192.168.1.77")
	require.NoError(t, err)
	assert.Contains(t, out, "Host:          10.0.0.9")
	assert.DirExists(t, staging)
}

func TestStageInputValue(t *testing.T) {
	root := writeWorkspace(t)

	out, err := run(t, "stage", "--workspace", root, "--staging", filepath.Join(t.TempDir(), "staging"),
		"--input", "host=192.168.1.77")
	require.NoError(t, err)
	assert.Contains(t, out, "Host:          192.168.1.77")
}

func TestStageRejectsUndeclaredInput(t *testing.T) {
	root := writeWorkspace(t)

	_, err := run(t, "stage", "--workspace", root, "--input", "port=8085")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter))
}

func TestStageUnknownConfiguration(t *testing.T) {
	root := writeWorkspace(t)

	_, err := run(t, "stage", "--workspace", root, "--name", "Nope")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConfigNotFound))
}

func TestStageRejectsNonBrightScriptConfiguration(t *testing.T) {
	root := writeWorkspace(t)

	_, err := run(t, "stage", "--workspace", root, "--name", "Attach node")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))
}

func TestConfigsJSON(t *testing.T) {
	root := writeWorkspace(t)

	out, err := run(t, "configs", "--workspace", root, "--json")
	require.NoError(t, err)

	var got struct {
		Path           string `json:"path"`
		Configurations []struct {
			Name    string `json:"name"`
			Type    string `json:"type"`
			Request string `json:"request"`
		} `json:"configurations"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, filepath.Join(root, ".vscode", "launch.json"), got.Path)
	require.Len(t, got.Configurations, 2)
	assert.Equal(t, "Debug channel", got.Configurations[1].Name)
	assert.Equal(t, "brightscript", got.Configurations[1].Type)
}

func TestConfigsTable(t *testing.T) {
	root := writeWorkspace(t)

	out, err := run(t, "configs", "--launch-json", filepath.Join(root, ".vscode", "launch.json"))
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "Debug channel")
	assert.Contains(t, out, "${input:host}")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "brs-dap "+version.Version)
}

func TestParseBreaks(t *testing.T) {
	root := filepath.FromSlash("/work/channel")

	got, err := parseBreaks([]string{"source/main.brs:3", "source/main.brs:9", "/abs/lib.brs:1"}, root)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 9}, got[filepath.Join(root, "source", "main.brs")])
	assert.Equal(t, []int{1}, got[filepath.FromSlash("/abs/lib.brs")])

	for _, bad := range []string{"main.brs", ":3", "main.brs:x", "main.brs:0"} {
		_, err := parseBreaks([]string{bad}, root)
		assert.True(t, errors.HasCode(err, errors.CodeInvalidParameter), bad)
	}
}

func TestServeRejectsInvalidMode(t *testing.T) {
	_, err := run(t, "serve", "--mode", "godmode")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mode")
}
