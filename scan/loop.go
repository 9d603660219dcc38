// Package scan drives the handheld's camera decode loop: sample frames at
// a paced interval, try QR detection on each, and stop at the first payload
// that carries the picking protocol tag.
package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"pickflow/token"
)

// ErrFrameSource wraps terminal camera failures: permission denied, device
// missing, or the frame stream dying mid-scan. The scan session ends when
// it occurs.
var ErrFrameSource = errors.New("camera frame source failed")

// FrameSource supplies camera frames. Frame blocks until a frame is
// available or ctx is done. Close releases the underlying device and must
// be safe to call after a Frame error.
type FrameSource interface {
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// Haptics gives scan feedback. Absence of a haptic device is not an error;
// implementations are best-effort.
type Haptics interface {
	Pulse(pattern ...time.Duration)
}

// NopHaptics is used when the device has no feedback channel.
type NopHaptics struct{}

func (NopHaptics) Pulse(...time.Duration) {}

// matchPulse is the feedback pattern on a successful scan.
var matchPulse = []time.Duration{100 * time.Millisecond, 50 * time.Millisecond, 100 * time.Millisecond}

// Options tune a decode loop run.
type Options struct {
	// Interval paces decode attempts; roughly one display refresh.
	Interval time.Duration
	Haptics  Haptics
	Logger   *slog.Logger
}

func (o *Options) fill() {
	if o.Interval <= 0 {
		o.Interval = 33 * time.Millisecond
	}
	if o.Haptics == nil {
		o.Haptics = NopHaptics{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Run samples frames from src until one decodes into a picking token.
//
// Frames without any detectable code are the steady state and are skipped
// silently. A readable QR that is not a picking payload is logged and the
// loop continues. The src is closed on every exit path: match,
// cancellation, and frame failure.
func Run(ctx context.Context, src FrameSource, opts Options) (_ token.Token, err error) {
	opts.fill()
	defer func() {
		if cerr := src.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("release frame source: %w", cerr)
		}
	}()

	reader := qrcode.NewQRCodeReader()
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return token.Token{}, ctx.Err()
		case <-ticker.C:
		}

		frame, err := src.Frame(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return token.Token{}, err
			}
			return token.Token{}, fmt.Errorf("%w: %v", ErrFrameSource, err)
		}

		raw, ok := decodeFrame(reader, frame)
		if !ok {
			continue
		}
		tok, err := token.Decode(raw)
		if errors.Is(err, token.ErrNotPickingToken) {
			opts.Logger.Debug("scanned code is not a picking token", slog.Int("len", len(raw)))
			continue
		}
		if err != nil {
			return token.Token{}, err
		}

		opts.Haptics.Pulse(matchPulse...)
		return tok, nil
	}
}

// decodeFrame runs one QR detection attempt. Frames with no code return
// ok=false.
func decodeFrame(reader gozxing.Reader, frame image.Image) (string, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(frame)
	if err != nil {
		return "", false
	}
	result, err := reader.Decode(bmp, nil)
	if err != nil || result == nil {
		return "", false
	}
	return result.GetText(), true
}
