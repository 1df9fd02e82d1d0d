package uploader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rasha-hantash/confluence-mirror/steps/types"
)

const metaSuffix = ".meta.json"

var ErrInvalidPath = errors.New("invalid object path")

// Meta is the sidecar written next to every object by FSSink.
type Meta struct {
	Path        string            `json:"path"`
	Size        int64             `json:"size"`
	Sha256      string            `json:"sha256"`
	ContentType string            `json:"contentType,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ModifiedAt  time.Time         `json:"modifiedAt"`
}

// FSSink mirrors objects into <root>/<container>/<path> on the local disk.
type FSSink struct {
	dir      string
	fileMode os.FileMode
	dirMode  os.FileMode
}

func NewFSSink(root, container string) (*FSSink, error) {
	if root == "" {
		return nil, fmt.Errorf("filesystem storage requires a root directory")
	}
	return &FSSink{
		dir:      filepath.Join(filepath.Clean(root), container),
		fileMode: 0o644,
		dirMode:  0o755,
	}, nil
}

func (f *FSSink) EnsureContainer(ctx context.Context) error {
	if err := os.MkdirAll(f.dir, f.dirMode); err != nil {
		return &StorageError{Backend: BackendFS, Op: "create container", Path: f.dir, Err: err}
	}
	return nil
}

// Upload writes the content through a temp file and renames it into place, so a
// reader never observes a partially written object.
func (f *FSSink) Upload(ctx context.Context, obj types.StorageObject) error {
	if err := validatePath(obj.Path); err != nil {
		return &StorageError{Backend: BackendFS, Op: "upload", Path: obj.Path, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return &StorageError{Backend: BackendFS, Op: "upload", Path: obj.Path, Err: err}
	}

	dest := f.objectPath(obj.Path)
	if err := os.MkdirAll(filepath.Dir(dest), f.dirMode); err != nil {
		return &StorageError{Backend: BackendFS, Op: "mkdir", Path: obj.Path, Err: err}
	}

	if err := f.writeAtomic(dest, obj.Content); err != nil {
		return &StorageError{Backend: BackendFS, Op: "write", Path: obj.Path, Err: err}
	}

	sum := sha256.Sum256(obj.Content)
	meta := Meta{
		Path:        obj.Path,
		Size:        int64(len(obj.Content)),
		Sha256:      hex.EncodeToString(sum[:]),
		ContentType: obj.ContentType,
		Metadata:    obj.Metadata,
		ModifiedAt:  time.Now().UTC(),
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return &StorageError{Backend: BackendFS, Op: "marshal metadata", Path: obj.Path, Err: err}
	}
	if err := f.writeAtomic(dest+metaSuffix, b); err != nil {
		return &StorageError{Backend: BackendFS, Op: "write metadata", Path: obj.Path, Err: err}
	}
	return nil
}

// Stat reads the metadata sidecar of path.
func (f *FSSink) Stat(path string) (*Meta, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(f.objectPath(path) + metaSuffix)
	if err != nil {
		return nil, err
	}
	var meta Meta
	if err := json.Unmarshal(b, &meta); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return &meta, nil
}

// Read returns the stored content of path.
func (f *FSSink) Read(path string) ([]byte, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	return os.ReadFile(f.objectPath(path))
}

func (f *FSSink) objectPath(path string) string {
	return filepath.Join(f.dir, filepath.FromSlash(path))
}

func (f *FSSink) writeAtomic(dest string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, f.fileMode); err != nil {
		return err
	}
	return os.Rename(tmpPath, dest)
}

// validatePath rejects paths that would escape the container directory.
// Page titles are otherwise stored verbatim.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path: %w", ErrInvalidPath)
	}
	if strings.HasPrefix(path, "/") || filepath.IsAbs(path) {
		return fmt.Errorf("absolute paths are not allowed: %w", ErrInvalidPath)
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("null bytes not allowed: %w", ErrInvalidPath)
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("segment %q not allowed: %w", seg, ErrInvalidPath)
		}
		if strings.HasSuffix(seg, metaSuffix) {
			return fmt.Errorf("reserved suffix %s: %w", metaSuffix, ErrInvalidPath)
		}
	}
	return nil
}
