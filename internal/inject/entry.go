package inject

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ctagard/brs-dap/internal/errors"
	"github.com/ctagard/brs-dap/internal/paths"
)

// EntryRoutines are the entry routine names in the order they are tried.
// A channel with a scene graph UI starts in RunUserInterface when it exists.
var EntryRoutines = []string{"RunUserInterface", "Main"}

var declPattern = regexp.MustCompile(`(?i)^\s*(?:sub|function)\s+([a-z_][a-z0-9_]*)\s*\(`)

// EntryPoint locates the synthetic entry breakpoint.
type EntryPoint struct {
	// File is the staged file, slash-separated and relative to the staging dir.
	File string
	// Routine is the declared name.
	Routine string
	// DeclLine is the 1-based line of the declaration.
	DeclLine int
}

// Line is where the entry breakpoint goes: the first line of the body.
func (e EntryPoint) Line() int {
	return e.DeclLine + 1
}

// FunctionIndex maps lower-cased function names to their declared spelling.
type FunctionIndex map[string]string

// Restore returns name in its declared case, or unchanged when unknown.
func (f FunctionIndex) Restore(name string) string {
	if declared, ok := f[strings.ToLower(name)]; ok {
		return declared
	}
	return name
}

// ScanSources reads every .brs file among staged (paths relative to
// stagingDir) and returns the entry point plus the function index.
//
// Names are tried in EntryRoutines order; for each name the files under
// source/ are scanned before the rest, each group in lexical order, and the
// first declaration wins. Component scripts run on their own threads, so a
// main in components/ is only used when source/ has none. Finding no entry
// routine is an EntryPointNotFound error; the index is still returned.
func ScanSources(stagingDir string, staged []string) (EntryPoint, FunctionIndex, error) {
	sources := make([]string, 0, len(staged))
	for _, p := range staged {
		if paths.IsSource(p) {
			sources = append(sources, p)
		}
	}
	sort.Slice(sources, func(i, j int) bool {
		ai, aj := underSource(sources[i]), underSource(sources[j])
		if ai != aj {
			return ai
		}
		return sources[i] < sources[j]
	})

	index := make(FunctionIndex)
	// first declaration per lower-cased name per file
	decls := make(map[string]map[string]decl)

	for _, rel := range sources {
		data, err := os.ReadFile(filepath.Join(stagingDir, filepath.FromSlash(rel)))
		if err != nil {
			return EntryPoint{}, index, errors.DeployFailed("reading "+path.Base(rel), err)
		}
		for i, line := range splitLines(string(data)) {
			m := declPattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name := m[1]
			lower := strings.ToLower(name)
			if _, seen := index[lower]; !seen {
				index[lower] = name
			}
			if decls[lower] == nil {
				decls[lower] = make(map[string]decl)
			}
			if _, seen := decls[lower][rel]; !seen {
				decls[lower][rel] = decl{name: name, line: i + 1}
			}
		}
	}

	for _, routine := range EntryRoutines {
		byFile := decls[strings.ToLower(routine)]
		for _, rel := range sources {
			if d, ok := byFile[rel]; ok {
				return EntryPoint{File: rel, Routine: d.name, DeclLine: d.line}, index, nil
			}
		}
	}

	return EntryPoint{}, index, errors.EntryPointNotFound(stagingDir, EntryRoutines)
}

type decl struct {
	name string
	line int
}

func underSource(rel string) bool {
	return strings.HasPrefix(rel, "source/")
}
