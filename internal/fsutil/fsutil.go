// Package fsutil holds the file operations every task shares.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// FileError is a failure tied to a single source file. One failing file never stops the
// others from being processed.
type FileError struct {
	File string
	Err  error
}

func (e *FileError) Error() string {
	return "File: " + e.File + ": " + e.Err.Error()
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// WriteFile replaces path with data, creating parent folders. The content is written to a
// temporary file first so a concurrent reader never sees a half written file.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// CopyFile copies a regular file, creating the destination folder.
func CopyFile(src, dst string) (int64, error) {
	sourceFileStat, err := os.Stat(src)
	if err != nil {
		return 0, err
	}

	if !sourceFileStat.Mode().IsRegular() {
		return 0, fmt.Errorf("%s is not a regular file", src)
	}

	source, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer source.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, err
	}

	destination, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer destination.Close()
	return io.Copy(destination, source)
}

// RemoveAll force removes a tree. A missing tree is not an error. Removal is retried
// twice because editors and file servers briefly hold handles on some platforms.
func RemoveAll(path string) error {
	err := os.RemoveAll(path)
	for i := 0; err != nil && i < 2; i++ {
		<-time.After(time.Millisecond * 20)
		err = os.RemoveAll(path)
	}
	return err
}
