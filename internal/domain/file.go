package domain

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalFile is a file selected on the local machine for upload.
type LocalFile struct {
	// Name is the original file name used to derive the object key.
	Name        string
	ContentType string
	Size        int64
	// Path is where the content can be read from.
	Path string
}

// OpenLocalFile describes the file at path. The content type is left empty.
func OpenLocalFile(path string) (*LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &LocalFile{
		Name: filepath.Base(path),
		Size: info.Size(),
		Path: path,
	}, nil
}

// Open returns a reader over the file content.
func (f *LocalFile) Open() (io.ReadCloser, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open file %s: %w", f.Path, err)
	}
	return file, nil
}
