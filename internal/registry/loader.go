package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"localllm/internal/common/fsutil"
	"localllm/pkg/types"
)

// ErrNotFound is returned by Resolve when no model matches the identifier.
var ErrNotFound = errors.New("no matching model")

var quantRe = regexp.MustCompile(`(?i)[-_.]((?:i?q\d[a-z0-9_]*)|f16|f32|bf16)$`)

// LoadDir scans a directory for *.gguf files and builds a registry from filenames.
// ID is the full filename (including extension); Path is the absolute file path.
// Quant is derived from a trailing quantization suffix when present.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		models = append(models, modelFromPath(filepath.Join(abs, name)))
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

func modelFromPath(p string) types.Model {
	name := filepath.Base(p)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	m := types.Model{ID: name, Name: stem, Path: p}
	if q := quantRe.FindStringSubmatch(stem); q != nil {
		m.Quant = strings.ToUpper(q[1])
	}
	if i := strings.IndexAny(stem, "-_."); i > 0 {
		m.Family = strings.ToLower(stem[:i])
	}
	return m
}

// Resolve maps an identifier onto a registry entry. Accepted forms, in order:
// an existing *.gguf path, an exact ID (filename), a file stem, or a
// hub-style "org/Name" whose Name prefixes a file stem case-insensitively
// (so "Qwen/Qwen2-0.5B-Instruct" matches "qwen2-0.5b-instruct-q4_k_m.gguf").
// Ties resolve to the lexicographically first ID.
func Resolve(models []types.Model, id string) (types.Model, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.Model{}, fmt.Errorf("%w: empty identifier", ErrNotFound)
	}
	if strings.HasSuffix(strings.ToLower(id), ".gguf") {
		if p, err := fsutil.ExpandHome(id); err == nil {
			if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
				if abs, err := filepath.Abs(p); err == nil {
					return modelFromPath(abs), nil
				}
			}
		}
	}
	for _, m := range models {
		if m.ID == id || m.Name == id {
			return m, nil
		}
	}
	want := strings.ToLower(id)
	if i := strings.LastIndex(want, "/"); i >= 0 {
		want = want[i+1:]
	}
	var hits []types.Model
	for _, m := range models {
		stem := strings.ToLower(m.Name)
		if stem == want {
			return m, nil
		}
		if strings.HasPrefix(stem, want) && len(stem) > len(want) && strings.ContainsRune("-_.", rune(stem[len(want)])) {
			hits = append(hits, m)
		}
	}
	if len(hits) == 0 {
		return types.Model{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })
	return hits[0], nil
}
