package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"
)

func noisyImage(w, h int) *image.RGBA {
	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCompressWithinLimitOnFirstAttempt(t *testing.T) {
	var calls []Progress
	res, err := Compress(noisyImage(32, 32), Options{}, func(p Progress) { calls = append(calls, p) })
	if err != nil {
		t.Fatal(err)
	}
	if res.Attempts != 1 || res.Quality != DefaultQuality || !res.WithinLimit {
		t.Fatalf("unexpected result: attempts=%d quality=%d within=%v", res.Attempts, res.Quality, res.WithinLimit)
	}
	if len(calls) != 1 {
		t.Fatalf("expected 1 progress call, got %d", len(calls))
	}
}

func TestCompressTerminatesAndReturnsLastAttempt(t *testing.T) {
	var qualities []int
	res, err := Compress(noisyImage(200, 200), Options{MaxBytes: 100}, func(p Progress) {
		qualities = append(qualities, p.Quality)
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.Attempts > DefaultMaxAttempts {
		t.Fatalf("exceeded max attempts: %d", res.Attempts)
	}
	if res.WithinLimit {
		t.Fatal("a 100 byte limit cannot be met")
	}
	if res.Quality != DefaultMinQuality {
		t.Fatalf("expected last attempt at quality %d, got %d", DefaultMinQuality, res.Quality)
	}

	want := []int{80, 70, 60, 50}
	if len(qualities) != len(want) {
		t.Fatalf("expected qualities %v, got %v", want, qualities)
	}
	for i := range want {
		if qualities[i] != want[i] {
			t.Fatalf("expected qualities %v, got %v", want, qualities)
		}
	}
}

func TestCompressStopsAtFirstFit(t *testing.T) {
	img := noisyImage(300, 300)
	first, _ := Compress(img, Options{MaxAttempts: 1}, nil)
	// Just under the quality 80 size forces a second attempt at 70.
	res, err := Compress(img, Options{MaxBytes: len(first.Data) - 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Attempts != 2 || res.Quality != 70 || !res.WithinLimit {
		t.Fatalf("expected fit at attempt 2 quality 70, got attempts=%d quality=%d within=%v",
			res.Attempts, res.Quality, res.WithinLimit)
	}
}

func TestCompressRespectsMaxAttempts(t *testing.T) {
	res, err := Compress(noisyImage(64, 64), Options{MaxBytes: 1, MinQuality: 10, MaxAttempts: 5}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Attempts != 5 || res.Quality != 40 {
		t.Fatalf("expected 5 attempts ending at quality 40, got %d at %d", res.Attempts, res.Quality)
	}
}

func TestRotate(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 20, 10))
	src.Set(0, 0, color.RGBA{255, 0, 0, 255})

	tests := []struct {
		degrees int
		w, h    int
		x, y    int
	}{
		{90, 10, 20, 9, 0},
		{180, 20, 10, 19, 9},
		{270, 10, 20, 0, 19},
		{-90, 10, 20, 0, 19},
		{360, 20, 10, 0, 0},
	}

	for _, tt := range tests {
		out, err := Rotate(src, tt.degrees)
		if err != nil {
			t.Fatalf("rotate %d: %v", tt.degrees, err)
		}
		b := out.Bounds()
		if b.Dx() != tt.w || b.Dy() != tt.h {
			t.Errorf("rotate %d: expected %dx%d, got %dx%d", tt.degrees, tt.w, tt.h, b.Dx(), b.Dy())
		}
		if r, _, _, _ := out.At(tt.x, tt.y).RGBA(); r == 0 {
			t.Errorf("rotate %d: marker pixel not at (%d,%d)", tt.degrees, tt.x, tt.y)
		}
	}

	if _, err := Rotate(src, 45); !errors.Is(err, ErrBadRotation) {
		t.Errorf("expected ErrBadRotation, got %v", err)
	}
}

func TestCropClampsToBounds(t *testing.T) {
	src := noisyImage(50, 40)

	out, err := Crop(src, image.Rect(30, 20, 100, 100))
	if err != nil {
		t.Fatal(err)
	}
	if b := out.Bounds(); b.Dx() != 20 || b.Dy() != 20 {
		t.Errorf("expected 20x20, got %dx%d", b.Dx(), b.Dy())
	}

	if _, err := Crop(src, image.Rect(60, 60, 80, 80)); !errors.Is(err, ErrEmptyCrop) {
		t.Errorf("expected ErrEmptyCrop, got %v", err)
	}
}

func TestProcessDecodesPNG(t *testing.T) {
	src := encodePNG(t, noisyImage(40, 30))

	res, err := Process(src, Options{Rotation: 90, Crop: image.Rect(0, 0, 20, 20)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Width != 20 || res.Height != 20 {
		t.Errorf("expected 20x20, got %dx%d", res.Width, res.Height)
	}
	if _, err := Process([]byte("not an image"), Options{}, nil); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestRotateAndCropSubImage(t *testing.T) {
	base := image.NewRGBA(image.Rect(0, 0, 60, 40))
	base.Set(10, 10, color.RGBA{255, 0, 0, 255})
	sub := base.SubImage(image.Rect(10, 10, 40, 30))

	rotated, err := Rotate(sub, 90)
	if err != nil {
		t.Fatal(err)
	}
	if b := rotated.Bounds(); b.Min != (image.Point{}) || b.Dx() != 20 || b.Dy() != 30 {
		t.Fatalf("expected 20x30 at origin, got %v", b)
	}
	if r, _, _, _ := rotated.At(19, 0).RGBA(); r == 0 {
		t.Error("expected the sub-image corner to move to the top right")
	}

	cropped, err := Crop(sub, image.Rect(10, 10, 20, 15))
	if err != nil {
		t.Fatal(err)
	}
	if b := cropped.Bounds(); b.Min != (image.Point{}) || b.Dx() != 10 || b.Dy() != 5 {
		t.Fatalf("expected 10x5 at origin, got %v", b)
	}
	if r, _, _, _ := cropped.At(0, 0).RGBA(); r == 0 {
		t.Error("expected crop to keep source coordinates")
	}
}

func BenchmarkProcessLargeUpload(b *testing.B) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, noisyImage(2000, 1500)); err != nil {
		b.Fatal(err)
	}
	src := buf.Bytes()
	opts := Options{Rotation: 90, Crop: image.Rect(100, 100, 1100, 1600)}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Process(src, opts, nil); err != nil {
			b.Fatal(err)
		}
	}
}
