package incremental

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode"

	derrors "git.home.luguber.info/inful/documentation-builder/internal/errors"
	"git.home.luguber.info/inful/documentation-builder/internal/paths"
)

// Status is the classification of one source document.
type Status string

const (
	StatusNew        Status = "new"
	StatusModified   Status = "modified"
	StatusUnmodified Status = "unmodified"
	StatusExcluded   Status = "excluded"
)

// SourceExtension identifies Markdown sources.
const SourceExtension = ".md"

// OutputExtension is the extension of every generated page.
const OutputExtension = ".html"

// MetadataIndex is the part of the metadata store the classifier needs.
type MetadataIndex interface {
	NewestModTime(dir string) time.Time
}

// Document is one discovered Markdown file.
type Document struct {
	SourcePath string
	// RelPath is the slash-separated path relative to the source root.
	RelPath    string
	OutputPath string
	// Dir is the canonical directory key of RelPath.
	Dir     string
	ModTime time.Time
	Status  Status
}

// Result groups documents by status in walk order.
type Result struct {
	New        []Document
	Modified   []Document
	Unmodified []Document
	Excluded   []Document
}

// Buildable returns new and modified documents, plus unmodified ones when force is set.
func (r *Result) Buildable(force bool) []Document {
	out := slices.Concat(r.New, r.Modified)
	if force {
		out = append(out, r.Unmodified...)
	}
	return out
}

// All returns every classified document.
func (r *Result) All() []Document {
	all := slices.Concat(r.New, r.Modified, r.Unmodified, r.Excluded)
	slices.SortFunc(all, func(a, b Document) int { return strings.Compare(a.RelPath, b.RelPath) })
	return all
}

// Counts returns the number of documents per status.
func (r *Result) Counts() map[Status]int {
	return map[Status]int{
		StatusNew:        len(r.New),
		StatusModified:   len(r.Modified),
		StatusUnmodified: len(r.Unmodified),
		StatusExcluded:   len(r.Excluded),
	}
}

func (r *Result) add(doc Document) {
	switch doc.Status {
	case StatusNew:
		r.New = append(r.New, doc)
	case StatusModified:
		r.Modified = append(r.Modified, doc)
	case StatusUnmodified:
		r.Unmodified = append(r.Unmodified, doc)
	case StatusExcluded:
		r.Excluded = append(r.Excluded, doc)
	}
}

// Classifier walks a source tree and classifies its Markdown files.
type Classifier struct {
	SourceRoot string
	OutputRoot string
	Metadata   MetadataIndex
	// IgnoreFiles lists base names that are always excluded.
	IgnoreFiles []string
	// SkipDirs are not descended into, typically an output tree nested in the source.
	SkipDirs []string
}

// Classify enumerates every Markdown file under SourceRoot. Filesystem
// errors abort the walk.
func (c *Classifier) Classify(ctx context.Context) (*Result, error) {
	skipped := make(map[string]bool, len(c.SkipDirs))
	for _, s := range c.SkipDirs {
		if abs, err := filepath.Abs(s); err == nil {
			skipped[abs] = true
		}
	}

	result := &Result{}
	err := filepath.WalkDir(c.SourceRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if p == c.SourceRoot {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if abs, absErr := filepath.Abs(p); absErr == nil && skipped[abs] {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(p), SourceExtension) {
			return nil
		}

		doc, err := c.classifyFile(p, d)
		if err != nil {
			return err
		}
		result.add(doc)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, derrors.FileSystemError("failed to classify sources").
			WithCause(err).
			WithContext("path", c.SourceRoot).
			Build()
	}
	return result, nil
}

func (c *Classifier) classifyFile(p string, d fs.DirEntry) (Document, error) {
	rel, err := filepath.Rel(c.SourceRoot, p)
	if err != nil {
		return Document{}, err
	}
	rel = filepath.ToSlash(rel)

	doc := Document{
		SourcePath: p,
		RelPath:    rel,
		OutputPath: OutputPathFor(c.OutputRoot, rel),
		Dir:        paths.CleanDir(filepath.ToSlash(filepath.Dir(rel))),
	}

	if IsExcludedName(d.Name()) || slices.Contains(c.IgnoreFiles, d.Name()) {
		doc.Status = StatusExcluded
		return doc, nil
	}

	info, err := d.Info()
	if err != nil {
		return Document{}, err
	}
	doc.ModTime = info.ModTime()

	outInfo, err := os.Stat(doc.OutputPath)
	switch {
	case os.IsNotExist(err):
		doc.Status = StatusNew
		return doc, nil
	case err != nil:
		return Document{}, err
	}

	effective := doc.ModTime
	if c.Metadata != nil {
		if meta := c.Metadata.NewestModTime(doc.Dir); meta.After(effective) {
			effective = meta
		}
	}
	if outInfo.ModTime().Before(effective) {
		doc.Status = StatusModified
	} else {
		doc.Status = StatusUnmodified
	}
	return doc, nil
}

// OutputPathFor maps a slash-separated source path to its output file.
func OutputPathFor(outputRoot, rel string) string {
	base := strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.Join(outputRoot, filepath.FromSlash(base)+OutputExtension)
}

// IsExcludedName reports whether a file name, with its extension removed,
// is written entirely in upper case (README.md, CHANGE-LOG.md). Names
// without any cased letter are not excluded.
func IsExcludedName(name string) bool {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	cased := false
	for _, r := range name {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}
