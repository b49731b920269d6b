package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	rootDir    = filepath.FromSlash("/work/build")
	debugRoot  = filepath.FromSlash("/work/src")
	stagingDir = filepath.FromSlash("/tmp/staging")
)

func TestClientToDevice(t *testing.T) {
	tr := New(rootDir, "", stagingDir, nil)

	assert.Equal(t, "pkg:/source/main.brs", tr.ClientToDevice(filepath.Join(rootDir, "source", "main.brs")))
	assert.Equal(t, "pkg:/components/widgets/Button.brs",
		tr.ClientToDevice(filepath.Join(rootDir, "components", "widgets", "Button.brs")))

	outside := filepath.FromSlash("/elsewhere/main.brs")
	assert.Equal(t, outside, tr.ClientToDevice(outside))
}

func TestClientToDeviceUsesDebugRoot(t *testing.T) {
	tr := New(rootDir, debugRoot, stagingDir, nil)

	assert.Equal(t, "pkg:/source/main.brs", tr.ClientToDevice(filepath.Join(debugRoot, "source", "main.brs")))
	assert.Equal(t, "pkg:/source/main.brs", tr.ClientToDevice(filepath.Join(rootDir, "source", "main.brs")))
}

func TestDeviceToClientRootMarker(t *testing.T) {
	tr := New(rootDir, "", stagingDir, nil)
	assert.Equal(t, filepath.Join(rootDir, "source", "main.brs"), tr.DeviceToClient("pkg:/source/main.brs"))
	assert.Equal(t, filepath.Join(rootDir, "source", "main.brs"), tr.DeviceToClient("PKG:/source/main.brs"))

	withDebug := New(rootDir, debugRoot, stagingDir, nil)
	assert.Equal(t, filepath.Join(debugRoot, "source", "main.brs"), withDebug.DeviceToClient("pkg:/source/main.brs"))
}

func TestDeviceToClientRoundTrip(t *testing.T) {
	tr := New(rootDir, debugRoot, stagingDir, nil)
	client := filepath.Join(debugRoot, "components", "Scene.brs")
	assert.Equal(t, client, tr.DeviceToClient(tr.ClientToDevice(client)))
}

func TestDeviceToClientTruncatedUnique(t *testing.T) {
	tr := New(rootDir, "", stagingDir, []string{
		"manifest",
		"source/main.brs",
		"components/widgets/Button.brs",
		"components/widgets/Label.brs",
	})

	assert.Equal(t,
		filepath.Join(rootDir, "components", "widgets", "Button.brs"),
		tr.DeviceToClient(".../widgets/Button.brs"))
}

func TestDeviceToClientTruncatedPartialSegment(t *testing.T) {
	tr := New(rootDir, "", stagingDir, []string{"components/widgets/Button.brs", "source/main.brs"})

	assert.Equal(t,
		filepath.Join(rootDir, "components", "widgets", "Button.brs"),
		tr.DeviceToClient("...gets/Button.brs"))
}

func TestDeviceToClientTruncatedAmbiguous(t *testing.T) {
	tr := New(rootDir, "", stagingDir, []string{
		"components/home/widgets/Button.brs",
		"components/settings/widgets/Button.brs",
	})

	assert.Equal(t, "/widgets/Button.brs", tr.DeviceToClient(".../widgets/Button.brs"))
}

func TestDeviceToClientTruncatedNoMatch(t *testing.T) {
	tr := New(rootDir, "", stagingDir, []string{"source/main.brs"})
	assert.Equal(t, "/widgets/Button.brs", tr.DeviceToClient(".../widgets/Button.brs"))
}

func TestDeviceToClientPassthrough(t *testing.T) {
	tr := New(rootDir, "", stagingDir, nil)
	assert.Equal(t, "common:/LibCore/v30/bslCore.brs", tr.DeviceToClient("common:/LibCore/v30/bslCore.brs"))
}

func TestStagingMapping(t *testing.T) {
	tr := New(rootDir, debugRoot, stagingDir, nil)

	staged, ok := tr.ClientToStaging(filepath.Join(rootDir, "source", "main.brs"))
	require.True(t, ok)
	assert.Equal(t, filepath.Join(stagingDir, "source", "main.brs"), staged)

	staged, ok = tr.ClientToStaging(filepath.Join(debugRoot, "source", "main.brs"))
	require.True(t, ok)
	assert.Equal(t, filepath.Join(stagingDir, "source", "main.brs"), staged)

	client, ok := tr.StagingToClient(staged)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(debugRoot, "source", "main.brs"), client)

	_, ok = tr.ClientToStaging(filepath.FromSlash("/elsewhere/x.brs"))
	assert.False(t, ok)
}

func TestRebase(t *testing.T) {
	moved, ok := Rebase(filepath.Join(debugRoot, "source", "a.brs"), debugRoot, rootDir)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(rootDir, "source", "a.brs"), moved)

	other := filepath.FromSlash("/elsewhere/a.brs")
	moved, ok = Rebase(other, debugRoot, rootDir)
	assert.False(t, ok)
	assert.Equal(t, other, moved)
}

func TestIndexDir(t *testing.T) {
	dir := t.TempDir()
	for _, rel := range []string{"manifest", "source/main.brs", "components/widgets/Button.brs"} {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "images"), 0o755))

	files, err := IndexDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"components/widgets/Button.brs", "manifest", "source/main.brs"}, files)
}

func TestIsSource(t *testing.T) {
	assert.True(t, IsSource("source/main.brs"))
	assert.True(t, IsSource("source/MAIN.BRS"))
	assert.False(t, IsSource("components/Scene.xml"))
}
