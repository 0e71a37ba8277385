package frame

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"syscall"
)

// MJPEGSource reads JPEG frames from a multipart/x-mixed-replace HTTP stream, the
// format served by most IP cameras.
type MJPEGSource struct {
	body   io.ReadCloser
	reader *multipart.Reader
	buf    bytes.Buffer
}

// OpenMJPEG connects to an MJPEG stream. Acquisition failures are *AcquireError.
func OpenMJPEG(ctx context.Context, client *http.Client, streamURL string) (*MJPEGSource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, &AcquireError{Source: streamURL, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return nil, &AcquireError{Source: streamURL, Err: fmt.Errorf("%w: %v", ErrNoDevice, err)}
		}
		return nil, &AcquireError{Source: streamURL, Err: err}
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		resp.Body.Close()
		return nil, &AcquireError{Source: streamURL, Err: ErrPermissionDenied}
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, &AcquireError{Source: streamURL, Err: ErrNoDevice}
	default:
		resp.Body.Close()
		return nil, &AcquireError{Source: streamURL, Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		return nil, &AcquireError{Source: streamURL, Err: fmt.Errorf("not an mjpeg stream: %q", resp.Header.Get("Content-Type"))}
	}

	return &MJPEGSource{
		body:   resp.Body,
		reader: multipart.NewReader(resp.Body, strings.TrimPrefix(params["boundary"], "--")),
	}, nil
}

// Next reads and decodes the next JPEG part. Cancellation takes effect when the
// request context is cancelled, which aborts the underlying read.
func (s *MJPEGSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	part, err := s.reader.NextPart()
	if err != nil {
		return nil, fmt.Errorf("reading mjpeg part: %w", err)
	}
	defer part.Close()

	s.buf.Reset()
	if _, err := s.buf.ReadFrom(part); err != nil {
		return nil, fmt.Errorf("reading mjpeg frame: %w", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(s.buf.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("decoding mjpeg frame: %w", err)
	}
	return img, nil
}

func (s *MJPEGSource) Close() error {
	return s.body.Close()
}
