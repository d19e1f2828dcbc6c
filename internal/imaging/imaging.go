// Package imaging crops, rotates and compresses deal images to JPEG.
//
// Compression starts at quality 80 and steps down by 10 while the encoding
// is larger than the size limit, never below quality 50 and never more than
// five encodes. The first encoding within the limit is returned; when the
// attempts run out the last (lowest quality) encoding is returned instead.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	imgproc "github.com/disintegration/imaging"
)

const (
	DefaultMaxBytes    = 2048 * 1024
	DefaultQuality     = 80
	DefaultQualityStep = 10
	DefaultMinQuality  = 50
	DefaultMaxAttempts = 5
)

var (
	ErrEmptyCrop     = errors.New("imaging: crop rectangle does not overlap the image")
	ErrBadRotation   = errors.New("imaging: rotation must be a multiple of 90")
	ErrInvalidFormat = errors.New("imaging: unsupported or corrupt image")
)

// Options control one Process call. Zero values take the defaults above.
type Options struct {
	// Crop is in source pixel coordinates after rotation. An empty
	// rectangle keeps the whole image. It is clamped to the image bounds.
	Crop image.Rectangle
	// Rotation in degrees clockwise; any multiple of 90, negative allowed.
	Rotation int

	MaxBytes    int
	Quality     int
	QualityStep int
	MinQuality  int
	MaxAttempts int
}

func (o Options) withDefaults() Options {
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.Quality <= 0 {
		o.Quality = DefaultQuality
	}
	if o.QualityStep <= 0 {
		o.QualityStep = DefaultQualityStep
	}
	if o.MinQuality <= 0 {
		o.MinQuality = DefaultMinQuality
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	return o
}

// Progress describes one finished encode.
type Progress struct {
	Attempt int
	Quality int
	Size    int
	Message string
}

// ProgressFunc receives compression progress. It may be nil.
type ProgressFunc func(Progress)

// Result is the chosen encoding.
type Result struct {
	Data        []byte
	Quality     int
	Attempts    int
	Width       int
	Height      int
	WithinLimit bool
}

// Process decodes src (JPEG, PNG, GIF, BMP or TIFF), applies its EXIF
// orientation, then the requested rotation and crop, and compresses the
// result.
func Process(src []byte, opts Options, progress ProgressFunc) (*Result, error) {
	img, err := imgproc.Decode(bytes.NewReader(src), imgproc.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	img, err = Rotate(img, opts.Rotation)
	if err != nil {
		return nil, err
	}

	img, err = Crop(img, opts.Crop)
	if err != nil {
		return nil, err
	}

	return Compress(img, opts, progress)
}

// Compress runs the quality search on an already prepared image.
func Compress(img image.Image, opts Options, progress ProgressFunc) (*Result, error) {
	opts = opts.withDefaults()
	b := img.Bounds()
	res := &Result{Width: b.Dx(), Height: b.Dy()}

	quality := opts.Quality
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		var buf bytes.Buffer
		if err := imgproc.Encode(&buf, img, imgproc.JPEG, imgproc.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("imaging: encode at quality %d: %w", quality, err)
		}

		res.Data = buf.Bytes()
		res.Quality = quality
		res.Attempts = attempt
		res.WithinLimit = buf.Len() <= opts.MaxBytes

		if progress != nil {
			msg := fmt.Sprintf("compressed to %d KB at quality %d", buf.Len()/1024, quality)
			if !res.WithinLimit {
				msg = fmt.Sprintf("%d KB at quality %d exceeds %d KB, compressing further",
					buf.Len()/1024, quality, opts.MaxBytes/1024)
			}
			progress(Progress{Attempt: attempt, Quality: quality, Size: buf.Len(), Message: msg})
		}

		if res.WithinLimit || quality <= opts.MinQuality {
			break
		}
		quality -= opts.QualityStep
		if quality < opts.MinQuality {
			quality = opts.MinQuality
		}
	}

	return res, nil
}

// Crop returns the part of img inside r, clamped to the image bounds.
// The result's origin is (0, 0).
func Crop(img image.Image, r image.Rectangle) (image.Image, error) {
	if r.Empty() {
		return img, nil
	}
	if r.Intersect(img.Bounds()).Empty() {
		return nil, ErrEmptyCrop
	}
	return imgproc.Crop(img, r), nil
}

// Rotate turns img clockwise by degrees, a multiple of 90.
func Rotate(img image.Image, degrees int) (image.Image, error) {
	if degrees%90 != 0 {
		return nil, ErrBadRotation
	}
	// imgproc rotates counter-clockwise.
	switch ((degrees/90)%4 + 4) % 4 {
	case 1:
		return imgproc.Rotate270(img), nil
	case 2:
		return imgproc.Rotate180(img), nil
	case 3:
		return imgproc.Rotate90(img), nil
	}
	return img, nil
}
