// Package namespace resolves a caller-supplied namespace string into the
// canonical two-component form and the on-disk paths backing it.
package namespace

import (
	"path/filepath"
	"strings"

	"github.com/chirino/agent-memory/internal/memerr"
)

// Paths holds the canonical namespace string and the files that back it.
type Paths struct {
	Namespace     string
	Dir           string
	MemoriesPath  string
	IndexPath     string
}

const memoriesFileName = "memories.jsonl"
const indexFileName = "index.json"

// Resolve canonicalizes raw into exactly two path-safe components
// ({userId}/{projectId}) rooted under root, binding namespace strings and
// directory structure tightly so that equivalent spellings (backslashes,
// trailing slashes, "." / ".." segments) never split into different
// directories.
func Resolve(root, raw string) (Paths, error) {
	parts, err := components(raw)
	if err != nil {
		return Paths{}, err
	}

	dir := root
	for _, p := range parts {
		dir = filepath.Join(dir, p)
	}

	return Paths{
		Namespace:    strings.Join(parts, "/"),
		Dir:          dir,
		MemoriesPath: filepath.Join(dir, memoriesFileName),
		IndexPath:    filepath.Join(dir, indexFileName),
	}, nil
}

func components(namespace string) ([]string, error) {
	ns := strings.ReplaceAll(strings.TrimSpace(namespace), `\`, "/")

	var parts []string
	for _, p := range strings.Split(ns, "/") {
		p = strings.TrimSpace(p)
		if p == "" || p == "." || p == ".." {
			continue
		}
		parts = append(parts, sanitize(p))
	}

	if len(parts) != 2 {
		return nil, &memerr.InvalidNamespaceError{Reason: "must be {userId}/{projectId}"}
	}

	return parts, nil
}

func sanitize(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	trimmed := strings.Trim(b.String(), " .")
	if trimmed == "" {
		return "_"
	}
	return trimmed
}
