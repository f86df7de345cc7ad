// Package fsutil holds the filesystem helpers used when writing output:
// merge-copying media trees and writing pages.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ErrSourceNotDir is returned when a tree copy source is missing or is not a directory.
var ErrSourceNotDir = errors.New("source tree not found")

// staleThreshold is how much newer a source file must be than its copy
// before the copy is refreshed. It absorbs coarse filesystem timestamps.
const staleThreshold = time.Second

// SamePath reports whether a and b resolve to the same location.
func SamePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// CopyMedia merges src into dst. It returns false without copying when both
// paths are the same location.
func CopyMedia(src, dst string) (bool, error) {
	if SamePath(src, dst) {
		return false, nil
	}
	if _, err := MergeTree(src, dst); err != nil {
		return false, err
	}
	return true, nil
}

// MergeTree copies every file of src into dst, creating directories as
// needed. Existing destination files are only overwritten when the source is
// more than a second newer. Modification times and permissions are
// preserved. It returns the number of files copied.
func MergeTree(src, dst string) (int, error) {
	info, err := os.Stat(src)
	if err != nil || !info.IsDir() {
		return 0, fmt.Errorf("%w: %s", ErrSourceNotDir, src)
	}

	copied := 0
	err = filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}

		srcInfo, err := d.Info()
		if err != nil {
			return err
		}
		if dstInfo, err := os.Stat(target); err == nil {
			if srcInfo.ModTime().Sub(dstInfo.ModTime()) <= staleThreshold {
				return nil
			}
		} else if !os.IsNotExist(err) {
			return err
		}

		if err := copyFile(p, target, srcInfo); err != nil {
			return err
		}
		copied++
		return nil
	})
	return copied, err
}

func copyFile(src, dst string, info fs.FileInfo) error {
	// #nosec G304 -- paths come from the configured media tree
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	// #nosec G304 -- destination is inside the configured output tree
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// WriteFile writes data to path, creating parent directories. Concurrent
// callers may share parent directories.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	// #nosec G306 -- generated site content is world readable
	return os.WriteFile(path, data, 0o644)
}
