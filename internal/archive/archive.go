// Package archive preserves recording folders before removal.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrSourceNotFound is returned when the source folder does not exist.
var ErrSourceNotFound = errors.New("source folder not found")

// FolderArchiver copies whole recording folders into an archive directory
// and deletes the original on success.
type FolderArchiver struct{}

// NewFolderArchiver creates a FolderArchiver.
func NewFolderArchiver() *FolderArchiver {
	return &FolderArchiver{}
}

// Archive copies sourceDir into archiveDir/<folder name> and then removes
// the original. The original survives any copy failure.
func (a *FolderArchiver) Archive(ctx context.Context, sourceDir, archiveDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Stat(sourceDir)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrSourceNotFound
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", sourceDir)
	}

	destDir := filepath.Join(archiveDir, filepath.Base(sourceDir))
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}

	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			// Recording folders are flat; nested directories are foreign
			// and stay behind.
			continue
		}
		srcInfo, err := entry.Info()
		if err != nil {
			return err
		}
		src := filepath.Join(sourceDir, entry.Name())
		dst := filepath.Join(destDir, entry.Name())
		if err := copyFile(src, dst, srcInfo.Mode()); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return os.RemoveAll(sourceDir)
}

func copyFile(src, dst string, mode os.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}
	return dstFile.Sync()
}
