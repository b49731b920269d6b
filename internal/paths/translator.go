// Package paths converts file locations between the three places a source
// file lives during a debug run: the IDE's copy under the client root, the
// staged copy that gets injected and packaged, and the device's pkg:/ view.
package paths

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// DeviceRoot prefixes every path the device reports for packaged files.
	DeviceRoot = "pkg:/"
	// TruncationMarker replaces the elided head of a long device path.
	TruncationMarker = "..."
)

// Translator maps paths between client, staging and device coordinates.
// It is immutable once built; a new one is created per deploy.
type Translator struct {
	rootDir      string
	debugRootDir string
	stagingDir   string
	staged       []string
}

// New returns a Translator. staged is the StagedFileIndex: slash-separated
// paths relative to stagingDir.
func New(rootDir, debugRootDir, stagingDir string, staged []string) *Translator {
	t := &Translator{
		rootDir:    clean(rootDir),
		stagingDir: clean(stagingDir),
		staged:     append([]string(nil), staged...),
	}
	if debugRootDir != "" {
		t.debugRootDir = clean(debugRootDir)
	}
	sort.Strings(t.staged)
	return t
}

// ClientRoot is the root the IDE sees.
func (t *Translator) ClientRoot() string {
	if t.debugRootDir != "" {
		return t.debugRootDir
	}
	return t.rootDir
}

// ClientToDevice returns the pkg:/ path of a client file. Paths outside the
// client root and root dir are returned unchanged.
func (t *Translator) ClientToDevice(clientPath string) string {
	rel, ok := t.relative(clientPath, t.debugRootDir, t.rootDir)
	if !ok {
		return clientPath
	}
	return DeviceRoot + rel
}

// DeviceToClient returns the client path of a device-reported file.
//
// A pkg:/ path is placed under the client root. A truncated path is resolved
// when exactly one staged file ends with the remaining suffix; otherwise the
// suffix is returned as-is. Anything else is returned unchanged.
func (t *Translator) DeviceToClient(devicePath string) string {
	switch {
	case hasPrefixFold(devicePath, DeviceRoot):
		rel := strings.TrimLeft(devicePath[len(DeviceRoot):], "/")
		return filepath.Join(t.ClientRoot(), filepath.FromSlash(rel))

	case strings.HasPrefix(devicePath, TruncationMarker):
		suffix := devicePath[len(TruncationMarker):]
		if rel, ok := t.MatchSuffix(suffix); ok {
			return filepath.Join(t.ClientRoot(), filepath.FromSlash(rel))
		}
		return suffix
	}
	return devicePath
}

// MatchSuffix finds the single staged path ending with suffix. Matching is
// case-insensitive because the device file system is.
func (t *Translator) MatchSuffix(suffix string) (string, bool) {
	suffix = strings.ToLower(filepath.ToSlash(suffix))
	if suffix == "" {
		return "", false
	}

	var match string
	found := 0
	for _, p := range t.staged {
		if strings.HasSuffix("/"+strings.ToLower(p), suffix) {
			match = p
			found++
			if found > 1 {
				return "", false
			}
		}
	}
	return match, found == 1
}

// ClientToStaging returns the staged copy of a file under the root dir or,
// failing that, the debug root dir.
func (t *Translator) ClientToStaging(clientPath string) (string, bool) {
	rel, ok := t.relative(clientPath, t.rootDir, t.debugRootDir)
	if !ok {
		return "", false
	}
	return filepath.Join(t.stagingDir, filepath.FromSlash(rel)), true
}

// StagingToClient returns the client path of a staged file.
func (t *Translator) StagingToClient(stagingPath string) (string, bool) {
	rel, ok := within(t.stagingDir, stagingPath)
	if !ok {
		return "", false
	}
	return filepath.Join(t.ClientRoot(), filepath.FromSlash(rel)), true
}

// relative returns p relative to the first of roots that contains it.
func (t *Translator) relative(p string, roots ...string) (string, bool) {
	for _, root := range roots {
		if root == "" {
			continue
		}
		if rel, ok := within(root, p); ok {
			return rel, true
		}
	}
	return "", false
}

// Rebase moves p from one root to another. ok is false when p is not
// under from.
func Rebase(p, from, to string) (string, bool) {
	rel, ok := within(clean(from), p)
	if !ok {
		return p, false
	}
	return filepath.Join(clean(to), filepath.FromSlash(rel)), true
}

// IndexDir lists every regular file under dir as slash-separated relative
// paths, sorted.
func IndexDir(dir string) ([]string, error) {
	files, err := doublestar.Glob(os.DirFS(dir), "**", doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// IsSource reports whether a staged path is a BrightScript source file.
func IsSource(p string) bool {
	return strings.EqualFold(path.Ext(p), ".brs")
}

// within returns p relative to root in slash form.
func within(root, p string) (string, bool) {
	rel, err := filepath.Rel(root, clean(p))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func clean(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
