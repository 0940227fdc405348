package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// AtomicWriteFile writes data to a sibling temporary file, restricts its
// permissions to perm and renames it over filePath. The parent directory is
// created with dirPerm when missing.
func AtomicWriteFile(filePath string, data []byte, perm, dirPerm os.FileMode) error {
	dir := filepath.Dir(filePath)
	if err := EnsureDir(dir, dirPerm); err != nil {
		return err
	}

	// Unique name so two concurrent writers never share a temp file; the
	// last rename wins.
	tempFile := filepath.Join(dir, "."+filepath.Base(filePath)+"."+uuid.NewString()+".tmp")
	file, err := os.OpenFile(tempFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("failed to create temporary file %s: %w", tempFile, err)
	}

	_, writeErr := file.Write(data)
	closeErr := file.Close()

	if writeErr != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to write to temporary file %s: %w", tempFile, writeErr)
	}
	if closeErr != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to close temporary file %s: %w", tempFile, closeErr)
	}

	// OpenFile honours the umask, so set the mode explicitly.
	if err := os.Chmod(tempFile, perm); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to set permissions on temporary file %s: %w", tempFile, err)
	}

	if err := os.Rename(tempFile, filePath); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file %s to %s: %w", tempFile, filePath, err)
	}

	return nil
}

// EnsureDir ensures that a directory exists, creating it if necessary
func EnsureDir(dir string, perm os.FileMode) error {
	if err := os.MkdirAll(dir, perm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// RemoveIfExists deletes path. A missing file is not an error.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}
