package snapshots

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/gophbank/internal/filex"
)

// seams for failure injection in tests
var (
	renameFile = os.Rename
	syncFile   = func(f *os.File) error { return f.Sync() }
)

// FileRepository keeps the snapshot in a single file. Saves go to a
// temporary file in the same directory which is then renamed over the
// target, so readers see either the old or the new document.
type FileRepository struct {
	path string
}

func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

func (r *FileRepository) Name() string { return "file:" + r.path }

func (r *FileRepository) Load(ctx context.Context) ([]byte, error) {
	b, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	return b, nil
}

func (r *FileRepository) Save(ctx context.Context, data []byte) (err error) {
	if err := filex.EnsureParentDir(r.path); err != nil {
		return err
	}

	dir, base := filepath.Split(r.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err = syncFile(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = renameFile(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace %s: %w", r.path, err)
	}
	return nil
}

// Quarantine renames the current snapshot to "<path>.<suffix>" and returns
// the new name.
func (r *FileRepository) Quarantine(ctx context.Context, suffix string) (string, error) {
	dst := r.path + "." + suffix
	if err := renameFile(r.path, dst); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", r.path, err)
	}
	return dst, nil
}
