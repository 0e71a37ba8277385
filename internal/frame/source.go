package frame

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"time"

	"fleet-checkpoint/config"
)

var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrNoDevice         = errors.New("no camera device")
)

// AcquireError is returned when a frame source cannot be opened.
type AcquireError struct {
	Source string
	Err    error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("could not open camera %s: %v", e.Source, e.Err)
}

func (e *AcquireError) Unwrap() error { return e.Err }

// Source yields camera frames. Next blocks until a frame is available.
type Source interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// Opener acquires a Source. A non-nil Source returned together with an error is
// still closed by the caller.
type Opener func(ctx context.Context) (Source, error)

// OpenerFromConfig builds the opener for the configured camera source.
func OpenerFromConfig(cfg config.CameraConfig) (Opener, error) {
	switch cfg.Source {
	case "mjpeg":
		if cfg.StreamURL == "" {
			return nil, errors.New("camera.stream_url is required for the mjpeg source")
		}
		// No overall timeout: the stream response body stays open for the whole session.
		client := &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: 10 * time.Second,
		}}
		return func(ctx context.Context) (Source, error) {
			src, err := OpenMJPEG(ctx, client, cfg.StreamURL)
			if err != nil {
				return nil, err
			}
			return src, nil
		}, nil
	case "dir":
		if cfg.Dir == "" {
			return nil, errors.New("camera.dir is required for the dir source")
		}
		return func(ctx context.Context) (Source, error) {
			src, err := OpenDir(cfg.Dir)
			if err != nil {
				return nil, err
			}
			return src, nil
		}, nil
	}
	return nil, fmt.Errorf("unknown camera source %q", cfg.Source)
}
