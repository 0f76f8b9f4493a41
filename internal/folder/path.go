// Package folder implements the virtual folder hierarchy over flat, slash separated path strings.
//
// Every function here is total: malformed input is normalized, never rejected with a panic.
// The empty string stands for "no folder" (the top level).
package folder

import (
	"errors"
	"strings"
)

const Separator = "/"

var (
	ErrEmptyPath       = errors.New("folder path is empty")
	ErrSameFolder      = errors.New("target folder equals source folder")
	ErrIntoDescendant  = errors.New("folder cannot be moved inside itself")
	ErrTooDeep         = errors.New("folder nesting too deep")
	ErrPathTooLong     = errors.New("folder path too long")
	ErrFolderNotExists = errors.New("folder does not exist")
)

type Limits struct {
	MaxDepth   int
	MaxPathLen int
}

func DefaultLimits() Limits { return Limits{MaxDepth: 5, MaxPathLen: 200} }

// Normalize trims the input, turns backslashes into slashes, collapses whitespace runs
// and repeated slashes, and strips leading/trailing slashes. It returns "" when nothing is left.
func Normalize(raw string) string {
	raw = strings.ReplaceAll(raw, `\`, Separator)
	parts := strings.Split(raw, Separator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Join(strings.Fields(p), " ")
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, Separator)
}

func Split(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, Separator)
}

func Join(segments []string) string {
	return Normalize(strings.Join(segments, Separator))
}

func Depth(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, Separator) + 1
}

// Parent returns "" for top level folders.
func Parent(path string) string {
	i := strings.LastIndex(path, Separator)
	if i < 0 {
		return ""
	}
	return path[:i]
}

// Base returns the last segment.
func Base(path string) string {
	return path[strings.LastIndex(path, Separator)+1:]
}

// HasPrefix reports whether path is prefix itself or lives underneath it.
// "a/bc" does not have prefix "a/b".
func HasPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	return path == prefix || strings.HasPrefix(path, prefix+Separator)
}

// SubstitutePrefix replaces a leading from with to, honoring segment boundaries.
// path is returned unchanged when from is not a prefix of it.
func SubstitutePrefix(path, from, to string) string {
	if !HasPrefix(path, from) {
		return path
	}
	if path == from {
		return to
	}
	rest := path[len(from)+len(Separator):]
	if to == "" {
		return rest
	}
	return to + Separator + rest
}

// Validate checks an already normalized path against the limits.
func Validate(path string, lim Limits) error {
	if lim.MaxDepth > 0 && Depth(path) > lim.MaxDepth {
		return ErrTooDeep
	}
	if lim.MaxPathLen > 0 && len(path) > lim.MaxPathLen {
		return ErrPathTooLong
	}
	return nil
}

// Ancestors lists every proper ancestor of path, outermost first.
func Ancestors(path string) []string {
	segs := Split(path)
	if len(segs) < 2 {
		return nil
	}
	out := make([]string, 0, len(segs)-1)
	for i := 1; i < len(segs); i++ {
		out = append(out, strings.Join(segs[:i], Separator))
	}
	return out
}
