package gitfacade

import (
	"io"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pkg/errors"
)

// globMeta are the doublestar characters that start a glob; the literal
// run before the first one is a pattern's fixed directory prefix.
const globMeta = "*?[{"

// Pathspec is a git-pathspec-flavored include/exclude filter over a
// repository's working tree, used by the Sync Orchestrator to scope a
// mapping to the files it cares about (spec.md §4.D).
type Pathspec struct {
	include []string
	exclude []string
}

// NewPathspec builds a Pathspec from a mapping's include and exclude
// pattern lists. Patterns are doublestar glob syntax evaluated against
// slash-separated, repo-relative paths.
func NewPathspec(include, exclude []string) *Pathspec {
	return &Pathspec{include: include, exclude: exclude}
}

// IsIncluded reports whether path is selected: it must match at least one
// include pattern and no exclude pattern. When isDir is true, a directory
// is considered included if any include pattern could still match
// something beneath it, so callers can use it to prune a recursive walk
// early without falsely excluding descendants.
func (p *Pathspec) IsIncluded(path string, isDir bool) bool {
	path = strings.TrimPrefix(path, "/")

	matched := len(p.include) == 0
	for _, pat := range p.include {
		if isDir {
			if dirMayContainMatch(pat, path) {
				matched = true
				break
			}
			continue
		}
		if ok, _ := doublestar.Match(pat, path); ok {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	for _, pat := range p.exclude {
		if isDir {
			continue // excludes never prune directories, only files within them
		}
		if ok, _ := doublestar.Match(pat, path); ok {
			return false
		}
	}
	return true
}

// dirMayContainMatch reports whether pattern could match some path nested
// under dir, either because the pattern's fixed directory equals dir or
// lies beneath it, or because dir lies beneath (or string-prefix-extends)
// the pattern's fixed directory, where the glob part may still match.
func dirMayContainMatch(pattern, dir string) bool {
	prefix := fixedPrefix(pattern)
	if prefix == "" {
		return true // pattern starts with a glob; any directory may qualify
	}
	return strings.HasPrefix(prefix, dir+"/") || strings.HasPrefix(dir, prefix) || prefix == dir
}

// fixedPrefix returns the literal directory portion of pattern preceding
// its first glob metacharacter.
func fixedPrefix(pattern string) string {
	i := strings.IndexAny(pattern, globMeta)
	literal := pattern
	if i >= 0 {
		literal = pattern[:i]
	}
	if i := strings.LastIndex(literal, "/"); i >= 0 {
		return literal[:i]
	}
	return ""
}

// LongestCommonDirectory returns the longest directory prefix shared by
// every include pattern's fixed (non-glob) portion, the LCD the
// orchestrator strips from matched paths before handing them to the
// Diff Engine / op stream (spec.md: "Mapping(local_subpath,
// remote_destination)"). An empty include list, or patterns with no
// common directory, yields "".
func (p *Pathspec) LongestCommonDirectory() string {
	if len(p.include) == 0 {
		return ""
	}

	var common []string
	for i, pat := range p.include {
		parts := splitDir(fixedPrefix(pat))
		if i == 0 {
			common = parts
			continue
		}
		common = commonPrefixParts(common, parts)
	}
	return strings.Join(common, "/")
}

func splitDir(dir string) []string {
	if dir == "" {
		return nil
	}
	return strings.Split(dir, "/")
}

func commonPrefixParts(a, b []string) []string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}

// IndexEntry is one repo-relative file path and its blob size, as
// produced by IndexEntriesWithPaths.
type IndexEntry struct {
	Path string
	Size int64
}

// IndexEntriesWithPaths walks commit's tree and returns every blob whose
// path satisfies p, for the walking-diff fallback (spec.md §4.J Strategy
// B). Paths are repo-relative and not yet stripped of the mapping's LCD;
// the caller strips LongestCommonDirectory() itself.
func (p *Pathspec) IndexEntriesWithPaths(commit *object.Commit) ([]IndexEntry, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, errors.Wrap(err, "commit tree")
	}

	var out []IndexEntry
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()
	for {
		name, entry, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "tree walk")
		}
		if entry.Mode.IsFile() && p.IsIncluded(name, false) {
			obj, err := tree.TreeEntryFile(&entry)
			if err != nil {
				return nil, errors.Wrapf(err, "blob for %s", name)
			}
			out = append(out, IndexEntry{Path: name, Size: obj.Size})
		}
	}
	return out, nil
}
