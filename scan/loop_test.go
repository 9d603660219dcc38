package scan

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"

	"pickflow/models"
	"pickflow/token"
)

type pulseRecorder struct {
	pulses [][]time.Duration
}

func (p *pulseRecorder) Pulse(pattern ...time.Duration) {
	p.pulses = append(p.pulses, pattern)
}

type failingSource struct {
	closed bool
}

func (f *failingSource) Frame(context.Context) (image.Image, error) {
	return nil, errors.New("device busy")
}

func (f *failingSource) Close() error {
	f.closed = true
	return nil
}

func blankFrame() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 120, 120))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	return img
}

func qrFrame(t *testing.T, payload string) image.Image {
	t.Helper()
	code, err := qr.Encode(payload, qr.L, qr.Auto)
	if err != nil {
		t.Fatalf("encode qr: %v", err)
	}
	scaled, err := barcode.Scale(code, 240, 240)
	if err != nil {
		t.Fatalf("scale qr: %v", err)
	}
	return scaled
}

func tokenFrame(t *testing.T, order models.Order) image.Image {
	t.Helper()
	data, err := token.RenderQR(order, 240)
	if err != nil {
		t.Fatalf("render token qr: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode token png: %v", err)
	}
	return img
}

func TestRunSkipsJunkAndStopsOnFirstMatch(t *testing.T) {
	order := models.Order{ID: "o-42", OrderNumber: "1042", PalletNumber: "P42"}
	src := NewSliceSource(
		blankFrame(),
		qrFrame(t, "https://example.com/not-ours"),
		qrFrame(t, `{"s":"WMS","id":"foreign"}`),
		tokenFrame(t, order),
	)
	haptics := &pulseRecorder{}

	tok, err := Run(context.Background(), src, Options{Interval: time.Millisecond, Haptics: haptics})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if tok.OrderID != "o-42" || tok.PalletNumber != "P42" {
		t.Fatalf("unexpected token: %+v", tok)
	}
	if !src.Closed() {
		t.Fatalf("frame source must be released after a match")
	}
	if len(haptics.pulses) != 1 {
		t.Fatalf("expected one haptic pulse, got %d", len(haptics.pulses))
	}
	if len(haptics.pulses[0]) != 3 {
		t.Fatalf("expected the three-beat match pattern, got %v", haptics.pulses[0])
	}
}

func TestRunCancellationReleasesSource(t *testing.T) {
	src := NewSliceSource(blankFrame())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := Run(ctx, src, Options{Interval: time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if !src.Closed() {
		t.Fatalf("frame source must be released on cancellation")
	}
}

func TestRunFrameFailureIsTerminal(t *testing.T) {
	src := &failingSource{}

	_, err := Run(context.Background(), src, Options{Interval: time.Millisecond})
	if !errors.Is(err, ErrFrameSource) {
		t.Fatalf("expected ErrFrameSource, got %v", err)
	}
	if !src.closed {
		t.Fatalf("frame source must be released on terminal failure")
	}
}

func TestDirSourceReadsNewestFrame(t *testing.T) {
	dir := t.TempDir()
	writeFramePNG(t, filepath.Join(dir, "frame-001.png"), blankFrame())
	writeFramePNG(t, filepath.Join(dir, "frame-002.png"), tokenFrame(t, models.Order{ID: "o-7", OrderNumber: "7", PalletNumber: "P7"}))

	src, err := NewDirSource(dir, time.Millisecond)
	if err != nil {
		t.Fatalf("new dir source: %v", err)
	}

	tok, err := Run(context.Background(), src, Options{Interval: time.Millisecond})
	if err != nil {
		t.Fatalf("run over spool dir: %v", err)
	}
	if tok.OrderID != "o-7" {
		t.Fatalf("unexpected token: %+v", tok)
	}
}

func TestNewDirSourceRejectsMissingDir(t *testing.T) {
	if _, err := NewDirSource(filepath.Join(t.TempDir(), "nope"), time.Millisecond); err == nil {
		t.Fatalf("expected error for missing spool dir")
	}
}

func writeFramePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}
