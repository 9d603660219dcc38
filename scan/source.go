package scan

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "image/jpeg"
	_ "image/png"
)

// DirSource reads frames from a spool directory. Handheld camera daemons
// that cannot be linked directly drop JPEG or PNG frame grabs there; the
// newest file wins and older grabs are pruned once read.
type DirSource struct {
	dir      string
	poll     time.Duration
	lastFile string
	closed   bool
}

// NewDirSource validates the spool directory up front so camera
// availability problems surface before the scan loop starts.
func NewDirSource(dir string, poll time.Duration) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("frame spool dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("frame spool %s is not a directory", dir)
	}
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	return &DirSource{dir: dir, poll: poll}, nil
}

// Frame blocks until a new frame file appears or ctx is done.
func (s *DirSource) Frame(ctx context.Context) (image.Image, error) {
	if s.closed {
		return nil, fmt.Errorf("frame source is closed")
	}
	for {
		name, err := s.newestFrameFile()
		if err != nil {
			return nil, err
		}
		if name != "" && name != s.lastFile {
			img, err := loadImage(filepath.Join(s.dir, name))
			if err != nil {
				// a partially written grab; skip it and wait for the next
				s.lastFile = name
			} else {
				s.lastFile = name
				s.prune(name)
				return img, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.poll):
		}
	}
}

// Close marks the source released. The spool directory itself is owned by
// the camera daemon and left in place.
func (s *DirSource) Close() error {
	s.closed = true
	return nil
}

func (s *DirSource) newestFrameFile() (string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", fmt.Errorf("read frame spool: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", nil
	}
	sort.Strings(names)
	return names[len(names)-1], nil
}

func (s *DirSource) prune(keep string) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == keep {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			_ = os.Remove(filepath.Join(s.dir, entry.Name()))
		}
	}
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// SliceSource replays a fixed frame sequence, then keeps returning the
// final frame, like a camera held steady on the same scene. Used in tests
// and dry runs.
type SliceSource struct {
	frames []image.Image
	next   int
	closed bool
}

func NewSliceSource(frames ...image.Image) *SliceSource {
	return &SliceSource{frames: frames}
}

func (s *SliceSource) Frame(ctx context.Context) (image.Image, error) {
	if s.closed {
		return nil, fmt.Errorf("frame source is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.frames) == 0 {
		return nil, fmt.Errorf("no frames available")
	}
	frame := s.frames[s.next]
	if s.next < len(s.frames)-1 {
		s.next++
	}
	return frame, nil
}

func (s *SliceSource) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close was called, for resource-release tests.
func (s *SliceSource) Closed() bool { return s.closed }
