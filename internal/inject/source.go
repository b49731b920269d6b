// Package inject rewrites staged BrightScript sources so the device stops
// where the user asked, and maps the device's shifted line numbers back.
package inject

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ctagard/brs-dap/internal/errors"
)

// StopStatement suspends a running BrightScript program.
const StopStatement = "STOP"

// Job names one staged file and the 1-based client lines to stop before.
type Job struct {
	Path  string
	Lines []int
}

// Result summarises an injection pass.
type Result struct {
	Injected int
	// Skipped lists breakpoint lines past the end of their file.
	Skipped map[string][]int
}

// Inject inserts a stop statement before each of lines (1-based, applied in
// ascending order) and returns the new content. Every insertion accounts for the ones before
// it in the same file. The stop statement copies the indentation and line
// ending of the line it precedes.
func Inject(content string, lines []int) (out string, injected int, skipped []int) {
	src := splitKeepEnds(content)
	lines = append([]int(nil), lines...)
	sort.Ints(lines)

	result := make([]string, 0, len(src)+len(lines))
	result = append(result, src...)

	for _, line := range lines {
		idx := line - 1 + injected
		if line < 1 || idx >= len(result) {
			skipped = append(skipped, line)
			continue
		}
		target := result[idx]
		stop := leadingSpace(target) + StopStatement + lineEnding(target, content)

		result = append(result, "")
		copy(result[idx+1:], result[idx:])
		result[idx] = stop
		injected++
	}

	return strings.Join(result, ""), injected, skipped
}

// InjectFile rewrites one staged file in place.
func InjectFile(path string, lines []int) (int, []int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, nil, errors.InjectFailed(path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, errors.InjectFailed(path, err)
	}

	out, injected, skipped := Inject(string(data), lines)
	if injected == 0 {
		return 0, skipped, nil
	}
	if err := os.WriteFile(path, []byte(out), info.Mode().Perm()); err != nil {
		return 0, nil, errors.InjectFailed(path, err)
	}
	return injected, skipped, nil
}

// InjectAll runs the jobs in parallel and returns once every write has
// finished or the first one failed.
func InjectAll(ctx context.Context, jobs []Job) (Result, error) {
	res := Result{Skipped: make(map[string][]int)}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, skipped, err := InjectFile(job.Path, job.Lines)
			if err != nil {
				return err
			}
			mu.Lock()
			res.Injected += n
			if len(skipped) > 0 {
				res.Skipped[job.Path] = skipped
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}

// splitKeepEnds splits s into lines that keep their terminators. A trailing
// terminator does not produce an empty final line.
func splitKeepEnds(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.SplitAfter(s, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// splitLines splits s into lines without terminators.
func splitLines(s string) []string {
	parts := splitKeepEnds(s)
	for i, p := range parts {
		parts[i] = strings.TrimRight(p, "\r\n")
	}
	return parts
}

func leadingSpace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// lineEnding returns the terminator of line, falling back to the file's
// dominant style for an unterminated last line.
func lineEnding(line, content string) string {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return "\r\n"
	case strings.HasSuffix(line, "\n"):
		return "\n"
	case strings.Contains(content, "\r\n"):
		return "\r\n"
	default:
		return "\n"
	}
}
