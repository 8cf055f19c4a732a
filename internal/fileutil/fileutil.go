package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// fingerprintChunk bounds how much of a large file is hashed from each end.
const fingerprintChunk = 1 << 20

// WriteFileAtomic writes data to a temp file beside path and renames it into
// place, creating the parent directory when needed.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Fingerprint returns a hex SHA256 over the file size and up to 1 MiB from
// both the head and the tail. Recordings are large, so the full content is
// never read.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	size := info.Size()

	h := sha256.New()
	fmt.Fprintf(h, "size=%d\n", size)
	if _, err := io.CopyN(h, f, min(size, fingerprintChunk)); err != nil {
		return "", fmt.Errorf("hash head: %w", err)
	}
	if size > fingerprintChunk {
		offset := max(size-fingerprintChunk, fingerprintChunk)
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return "", fmt.Errorf("seek tail: %w", err)
		}
		if _, err := io.Copy(h, f); err != nil {
			return "", fmt.Errorf("hash tail: %w", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
