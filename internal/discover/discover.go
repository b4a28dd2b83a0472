// Package discover finds the script files to analyze under a root directory.
package discover

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/sprocmap/internal/lang"
)

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path     string // Relative to root
	Language string
}

// Options narrows discovery.
type Options struct {
	// Languages restricts results to the named languages. Empty means all.
	Languages []string

	// Exclude holds glob patterns matched against slash-separated relative
	// paths, e.g. "tests/**" or "**/migrations/*.py".
	Exclude []string

	// MaxFileSize skips files larger than this many bytes. Zero means no limit.
	MaxFileSize int64

	// Logger receives a warning for every oversized file skipped. Nil
	// discards them.
	Logger *slog.Logger
}

var skipDirs = map[string]struct{}{
	"__pycache__":      {},
	"node_modules":     {},
	".git":             {},
	".hg":              {},
	".svn":             {},
	"venv":             {},
	".venv":            {},
	"env":              {},
	"build":            {},
	"dist":             {},
	".tox":             {},
	".mypy_cache":      {},
	".pytest_cache":    {},
	"bower_components": {},
}

// Files discovers script files under root, sorted by relative path.
// Inside a git work tree only tracked and unignored files are considered;
// otherwise a top-level .gitignore is honoured when present.
func Files(root string, opts Options) ([]FileEntry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	langSet := make(map[string]struct{}, len(opts.Languages))
	for _, l := range opts.Languages {
		if _, ok := lang.Languages[l]; !ok {
			return nil, fmt.Errorf("unknown language %q (supported: %s)", l, strings.Join(lang.Names(), ", "))
		}
		langSet[l] = struct{}{}
	}
	excludes, err := compileGlobs(opts.Exclude)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	gitFiles := gitLsFiles(root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(root)
	}

	var results []FileEntry

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") || d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		langName := lang.ForExtension(filepath.Ext(name))
		if langName == "" {
			return nil
		}
		if len(langSet) > 0 {
			if _, ok := langSet[langName]; !ok {
				return nil
			}
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		slashRel := filepath.ToSlash(rel)

		if gitFiles != nil {
			if _, ok := gitFiles[slashRel]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(slashRel) {
			return nil
		}
		if matchAny(excludes, slashRel) {
			return nil
		}

		if opts.MaxFileSize > 0 {
			fi, err := d.Info()
			if err != nil {
				log.Warn("skipped input", "key", slashRel, "err", err)
				return nil
			}
			if fi.Size() > opts.MaxFileSize {
				log.Warn("skipped input", "key", slashRel, "reason", "exceeds max file size",
					"size", fi.Size(), "max", opts.MaxFileSize)
				return nil
			}
		}

		results = append(results, FileEntry{Path: rel, Language: langName})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func matchAny(globs []glob.Glob, path string) bool {
	for _, g := range globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
