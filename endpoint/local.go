package endpoint

import (
	"io"
	"os"
	"path/filepath"

	apperrors "github.com/Pret-a-LLOD/Fintan/errors"
)

func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("file", path).WithCause(err)
		}
		return nil, apperrors.Resource(path, err)
	}
	return f, nil
}

func createFile(path string) (io.WriteCloser, error) {
	full := filepath.Clean(path)
	if dir := filepath.Dir(full); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, apperrors.Resource(path, err)
		}
	}
	f, err := os.Create(full)
	if err != nil {
		return nil, apperrors.Resource(path, err)
	}
	return f, nil
}
