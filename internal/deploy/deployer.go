// Package deploy stages, packages and controls a channel on the local side of
// a debug run. Uploading the package to the device is handled elsewhere.
package deploy

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ctagard/brs-dap/internal/errors"
	"github.com/ctagard/brs-dap/internal/paths"
	"github.com/ctagard/brs-dap/pkg/types"
)

// Deployer is the deploy service the session controller drives.
type Deployer interface {
	// Stage copies the selected project files to a staging folder and
	// returns its path.
	Stage(ctx context.Context, cfg *types.LaunchConfig) (string, error)
	// Package zips the staging folder and returns the archive path.
	Package(ctx context.Context, cfg *types.LaunchConfig, stagingDir string) (string, error)
	// PressHome sends the home key to the device.
	PressHome(ctx context.Context, host string) error
}

// ECPPort is the device's external control port.
const ECPPort = 8060

// PackageName is the file name of the packaged channel.
const PackageName = "channel.zip"

// LocalDeployer implements Deployer on the local file system.
type LocalDeployer struct {
	// DefaultFiles apply when a launch configuration lists no files.
	DefaultFiles []string
	HTTPClient   *http.Client
	Logger       *slog.Logger
	// ControlURL overrides http://<host>:8060. Tests use it.
	ControlURL string
}

// NewLocalDeployer returns a LocalDeployer using http.DefaultClient.
func NewLocalDeployer(defaultFiles []string, logger *slog.Logger) *LocalDeployer {
	return &LocalDeployer{
		DefaultFiles: defaultFiles,
		HTTPClient:   http.DefaultClient,
		Logger:       logger,
	}
}

// Stage copies every file matched by cfg.Files (or DefaultFiles) from
// cfg.RootDir. Patterns prefixed with "!" exclude matches. An existing
// staging folder is emptied first.
func (d *LocalDeployer) Stage(ctx context.Context, cfg *types.LaunchConfig) (string, error) {
	root, err := filepath.Abs(cfg.RootDir)
	if err != nil {
		return "", errors.DeployFailed("resolving rootDir", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is not a directory", root)
		}
		return "", errors.DeployFailed("reading rootDir", err)
	}

	dir, err := d.prepareStaging(cfg.StagingDir, root)
	if err != nil {
		return "", err
	}

	// a half-staged folder is nobody's to clean up once we return
	fail := func(err error) (string, error) {
		if !cfg.RetainStagingFolder {
			_ = os.RemoveAll(dir)
		}
		return "", err
	}

	files, err := Select(os.DirFS(root), d.patterns(cfg))
	if err != nil {
		return fail(errors.DeployFailed("matching files", err))
	}

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		src := filepath.Join(root, filepath.FromSlash(rel))
		dst := filepath.Join(dir, filepath.FromSlash(rel))
		if err := copyFile(src, dst); err != nil {
			return fail(errors.DeployFailed("copying "+rel, err))
		}
	}

	if d.Logger != nil {
		d.Logger.Debug("staged project", "root", root, "staging", dir, "files", len(files))
	}
	return dir, nil
}

func (d *LocalDeployer) patterns(cfg *types.LaunchConfig) []string {
	if len(cfg.Files) > 0 {
		return cfg.Files
	}
	return d.DefaultFiles
}

func (d *LocalDeployer) prepareStaging(dir, root string) (string, error) {
	if dir == "" {
		tmp, err := os.MkdirTemp("", "brs-dap-staging-")
		if err != nil {
			return "", errors.DeployFailed("creating staging folder", err)
		}
		return tmp, nil
	}

	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.DeployFailed("resolving staging folder", err)
	}
	if dir == root {
		return "", errors.DeployFailed("preparing staging folder", fmt.Errorf("staging folder %s is the project root", dir))
	}
	if err := os.RemoveAll(dir); err != nil {
		return "", errors.DeployFailed("clearing staging folder", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.DeployFailed("creating staging folder", err)
	}
	return dir, nil
}

// Package writes the staging folder to <outDir>/channel.zip. outDir
// defaults to <rootDir>/out.
func (d *LocalDeployer) Package(ctx context.Context, cfg *types.LaunchConfig, stagingDir string) (string, error) {
	outDir := cfg.OutDir
	if outDir == "" {
		outDir = filepath.Join(cfg.RootDir, "out")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", errors.DeployFailed("creating out folder", err)
	}

	files, err := paths.IndexDir(stagingDir)
	if err != nil {
		return "", errors.DeployFailed("listing staging folder", err)
	}

	zipPath := filepath.Join(outDir, PackageName)
	f, err := os.Create(zipPath)
	if err != nil {
		return "", errors.DeployFailed("creating package", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := addToZip(zw, stagingDir, rel); err != nil {
			return "", errors.DeployFailed("packaging "+rel, err)
		}
	}
	if err := zw.Close(); err != nil {
		return "", errors.DeployFailed("finishing package", err)
	}
	return zipPath, f.Close()
}

// PressHome posts a Home keypress to the device's external control port.
func (d *LocalDeployer) PressHome(ctx context.Context, host string) error {
	base := d.ControlURL
	if base == "" {
		base = fmt.Sprintf("http://%s:%d", host, ECPPort)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+"/keypress/Home", nil)
	if err != nil {
		return err
	}
	client := d.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("press home on %s: %w", host, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("press home on %s: %s", host, resp.Status)
	}
	return nil
}

// Select returns the files of fsys matched by patterns, sorted. A pattern
// starting with "!" removes earlier matches.
func Select(fsys fs.FS, patterns []string) ([]string, error) {
	selected := make(map[string]struct{})
	for _, pattern := range patterns {
		if exclude, ok := strings.CutPrefix(pattern, "!"); ok {
			for p := range selected {
				if match, _ := doublestar.Match(exclude, p); match {
					delete(selected, p)
				}
			}
			continue
		}
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q", pattern)
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			selected[m] = struct{}{}
		}
	}

	out := make([]string, 0, len(selected))
	for p := range selected {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func addToZip(zw *zip.Writer, dir, rel string) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: rel, Method: zip.Deflate})
	if err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
