package frame

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirSource cycles through the still images in a directory. It stands in for a
// camera on the bench.
type DirSource struct {
	files []string
	next  int
}

// OpenDir lists the png and jpeg files in dir. An empty or missing directory is
// reported as ErrNoDevice.
func OpenDir(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrPermission):
			return nil, &AcquireError{Source: dir, Err: ErrPermissionDenied}
		case errors.Is(err, fs.ErrNotExist):
			return nil, &AcquireError{Source: dir, Err: ErrNoDevice}
		}
		return nil, &AcquireError{Source: dir, Err: err}
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, &AcquireError{Source: dir, Err: fmt.Errorf("%w: no images in directory", ErrNoDevice)}
	}
	sort.Strings(files)
	return &DirSource{files: files}, nil
}

func (s *DirSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}

func (s *DirSource) Close() error { return nil }
