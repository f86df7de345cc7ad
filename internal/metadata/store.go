// Package metadata discovers per-directory metadata.yaml declarations and
// computes the effective metadata for any directory of the source tree.
package metadata

import (
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	derrors "git.home.luguber.info/inful/documentation-builder/internal/errors"
	"git.home.luguber.info/inful/documentation-builder/internal/paths"
)

// FileName is the fixed name of a metadata declaration.
const FileName = "metadata.yaml"

// Node is one discovered metadata declaration. Nodes are immutable after discovery.
type Node struct {
	// Dir is the canonical directory key relative to the source root.
	Dir     string
	Path    string
	Content map[string]any
	ModTime time.Time
}

// Store indexes the nodes of one source tree. It is safe for concurrent use.
type Store struct {
	root  string
	nodes []*Node // sorted root-most first

	mu    sync.Mutex
	cache map[string]map[string]any
}

// Discover walks root for metadata declarations. Hidden directories and any
// directory listed in skip are not descended into. It fails with a
// NoMetadataFound error when no declaration exists.
func Discover(root string, skip ...string) (*Store, error) {
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		if abs, err := filepath.Abs(s); err == nil {
			skipped[abs] = true
		}
	}

	var nodes []*Node
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if abs, absErr := filepath.Abs(p); absErr == nil && skipped[abs] && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != FileName {
			return nil
		}

		node, err := load(root, p)
		if err != nil {
			return err
		}
		nodes = append(nodes, node)
		return nil
	})
	if err != nil {
		if _, ok := derrors.AsClassified(err); ok {
			return nil, err
		}
		return nil, derrors.FileSystemError("failed to scan metadata").
			WithCause(err).
			WithContext("path", root).
			Build()
	}
	if len(nodes) == 0 {
		return nil, derrors.NoMetadataFound(root)
	}

	return New(root, nodes), nil
}

// New builds a store from already loaded nodes. The nodes are copied; the
// caller's values are left as given.
func New(root string, nodes []*Node) *Store {
	sorted := make([]*Node, len(nodes))
	for i, n := range nodes {
		cp := *n
		cp.Dir = paths.CleanDir(n.Dir)
		sorted[i] = &cp
	}
	slices.SortStableFunc(sorted, func(a, b *Node) int {
		if d := paths.Depth(a.Dir) - paths.Depth(b.Dir); d != 0 {
			return d
		}
		return strings.Compare(a.Dir, b.Dir)
	})
	return &Store{
		root:  root,
		nodes: sorted,
		cache: make(map[string]map[string]any),
	}
}

func load(root, p string) (*Node, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}

	content := map[string]any{}
	if err := yaml.Unmarshal(data, &content); err != nil {
		return nil, derrors.NewError(derrors.CategoryMetadata, "invalid metadata file").
			Fatal().
			UserAction().
			WithCause(err).
			WithContext("path", p).
			Build()
	}
	if content == nil {
		content = map[string]any{}
	}

	rel, err := filepath.Rel(root, filepath.Dir(p))
	if err != nil {
		return nil, err
	}
	return &Node{
		Dir:     paths.CleanDir(rel),
		Path:    p,
		Content: content,
		ModTime: info.ModTime(),
	}, nil
}

// Root returns the source root the store was discovered from.
func (s *Store) Root() string { return s.root }

// Nodes returns the discovered nodes, root-most first.
func (s *Store) Nodes() []*Node { return slices.Clone(s.nodes) }

// Len returns the number of discovered declarations.
func (s *Store) Len() int { return len(s.nodes) }

// Ancestors returns the nodes whose directory is dir or one of its
// ancestors, least specific first.
func (s *Store) Ancestors(dir string) []*Node {
	dir = paths.CleanDir(dir)
	var out []*Node
	for _, n := range s.nodes {
		if paths.IsAncestor(n.Dir, dir) {
			out = append(out, n)
		}
	}
	return out
}

// Effective returns the merged metadata visible to dir. Nearer declarations
// override keys of farther ones, and document locations in every declaration
// are relativized to dir. The caller owns the returned map.
func (s *Store) Effective(dir string) map[string]any {
	dir = paths.CleanDir(dir)

	s.mu.Lock()
	merged, ok := s.cache[dir]
	if !ok {
		merged = map[string]any{}
		for _, n := range s.Ancestors(dir) {
			relocated := paths.RelativizeTree(n.Content, n.Dir, dir).(map[string]any)
			maps.Copy(merged, relocated)
		}
		s.cache[dir] = merged
	}
	s.mu.Unlock()

	return DeepCopy(merged).(map[string]any)
}

// NewestModTime returns the latest modification time among the declarations
// that apply to dir, or the zero time when none apply.
func (s *Store) NewestModTime(dir string) time.Time {
	var newest time.Time
	for _, n := range s.Ancestors(dir) {
		if n.ModTime.After(newest) {
			newest = n.ModTime
		}
	}
	return newest
}

// DeepCopy copies nested maps and slices produced by YAML decoding.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = DeepCopy(child)
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(t))
		for k, child := range t {
			out[k] = DeepCopy(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = DeepCopy(child)
		}
		return out
	default:
		return v
	}
}
