package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrEmptyArtifact is returned when serialization produced zero bytes.
var ErrEmptyArtifact = errors.New("pipeline: serialized output is empty")

// writeTemp writes the artifact to a temp file in dst's directory, so the
// final rename stays on one filesystem, and fsyncs it.
func writeTemp(dst string, emit func(w io.Writer) error) (tmp string, size int64, err error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	tmp = f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	if err = emit(f); err != nil {
		return "", 0, fmt.Errorf("serialize: %w", err)
	}
	if err = f.Sync(); err != nil {
		return "", 0, fmt.Errorf("sync temp file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("stat temp file: %w", err)
	}
	if info.Size() == 0 {
		err = ErrEmptyArtifact
		return "", 0, err
	}
	if err = f.Chmod(0o644); err != nil {
		return "", 0, fmt.Errorf("chmod temp file: %w", err)
	}
	if err = f.Close(); err != nil {
		return "", 0, fmt.Errorf("close temp file: %w", err)
	}
	return tmp, info.Size(), nil
}

func commit(tmp, dst string) error {
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit output: %w", err)
	}
	return nil
}
