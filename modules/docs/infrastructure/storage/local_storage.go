package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/iota-uz/docflow/pkg/configuration"
)

// LocalStorage writes proposed files to a directory on disk and hands back
// the generated file name as the opaque reference.
type LocalStorage struct {
	dir      string
	maxBytes int64
	allowed  map[string]struct{}
}

func NewLocalStorage(opts configuration.UploadOptions) (*LocalStorage, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	allowed := make(map[string]struct{})
	for _, ext := range strings.Split(opts.AllowedExts, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" {
			allowed[ext] = struct{}{}
		}
	}
	return &LocalStorage{
		dir:      opts.Dir,
		maxBytes: int64(opts.MaxSizeMB) << 20,
		allowed:  allowed,
	}, nil
}

func (s *LocalStorage) Save(ctx context.Context, filename string, content io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := s.allowed[ext]; !ok {
		return "", fmt.Errorf("file extension %q is not allowed", ext)
	}

	data, err := io.ReadAll(io.LimitReader(content, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("file exceeds the %d MB limit", s.maxBytes>>20)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("file is empty")
	}

	// The content is sniffed so a renamed binary cannot slip in under an
	// allowed extension.
	detected := mimetype.Detect(data)
	if dext := strings.ToLower(detected.Extension()); dext != "" {
		if _, ok := s.allowed[dext]; !ok {
			return "", fmt.Errorf("file content (%s) does not match an allowed type", detected.String())
		}
	}

	ref := fmt.Sprintf("%s%s", uuid.New(), ext)
	path := filepath.Join(s.dir, ref)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return ref, nil
}
