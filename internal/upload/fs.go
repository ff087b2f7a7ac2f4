package upload

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir creates a directory (and parents) if it doesn't exist.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o775); err != nil {
		return fmt.Errorf("creating directory %s: %w", path, err)
	}
	return nil
}

// MoveFile moves src to dst, falling back to copy-and-remove when a rename
// crosses filesystems (temp dirs often live on a different mount).
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("moving %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("moving %s: %w", src, err)
	}
	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return fmt.Errorf("moving %s: %w", src, err)
	}
	os.Remove(src)
	return nil
}

// RenameDir renames an item's image directory from src to dst. When dst
// already exists (a previously purged or reused code), the contents are
// merged file by file and the emptied src is removed. On a name collision
// the file already present in dst wins; the skipped source file is logged
// and left behind in src.
func RenameDir(src, dst string) error {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	if _, err := os.Stat(dst); os.IsNotExist(err) {
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("renaming directory %s: %w", src, err)
		}
		return nil
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("merging directory %s: %w", src, err)
	}
	for _, e := range entries {
		from := filepath.Join(src, e.Name())
		to := filepath.Join(dst, e.Name())
		if _, err := os.Stat(to); err == nil {
			slog.Warn("directory merge skipped existing file", "file", to)
			continue
		}
		if err := os.Rename(from, to); err != nil {
			return fmt.Errorf("merging %s: %w", from, err)
		}
	}
	RemoveDirIfEmpty(src)
	return nil
}

// RemoveDirIfEmpty removes a directory only if it contains no entries.
// A non-empty or already absent directory is silently left alone.
func RemoveDirIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	os.Remove(dir)
}

// Resolve joins a stored relative path to the uploads root and verifies the
// result stays inside the root. A path escaping the root (traversal via a
// corrupted or malicious stored value) is rejected.
func Resolve(uploadsRoot, relativePath string) (string, error) {
	root, err := filepath.Abs(uploadsRoot)
	if err != nil {
		return "", fmt.Errorf("resolving uploads root: %w", err)
	}
	abs := filepath.Join(root, filepath.FromSlash(relativePath))
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes uploads root: %s", relativePath)
	}
	return abs, nil
}

// ChecksumFile returns the hex SHA-256 of a file's contents.
func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
