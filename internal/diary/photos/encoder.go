// Package photos turns an uploaded batch of image files into ordered
// PhotoRecords, each tagged by a descriptor.
package photos

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/blueplan/diary-go/internal/diary/types"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// File is one uploaded photo. Data takes precedence over Open.
type File struct {
	Name string
	Data []byte
	Open func() (io.ReadCloser, error)
}

func (f File) read(limit int64) ([]byte, error) {
	if f.Data != nil {
		if limit > 0 && int64(len(f.Data)) > limit {
			return nil, fmt.Errorf("%s exceeds %d bytes", f.Name, limit)
		}
		return f.Data, nil
	}
	if f.Open == nil {
		return nil, errors.New("no content")
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	if limit <= 0 {
		return io.ReadAll(rc)
	}
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s exceeds %d bytes", f.Name, limit)
	}
	return data, nil
}

// formats embedded as-is when small enough; anything else is re-encoded
var passthrough = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Encoder produces data URLs that the vision backend and the story prompt
// can embed.
type Encoder struct {
	// MaxDimension bounds the longer edge; 0 disables downscaling.
	MaxDimension int
	Quality      int
}

func NewEncoder(maxDimension int) Encoder {
	return Encoder{MaxDimension: maxDimension, Quality: 90}
}

// Encode returns data:<mime>;base64,<payload>. Anything that does not decode
// as a raster image is DecodeFailed.
func (e Encoder) Encode(data []byte) (string, error) {
	const op = "photos.encode"
	if len(data) == 0 {
		return "", types.Errorf(types.KindDecodeFailed, op, "empty file")
	}
	mime := mimetype.Detect(data)
	mediaType := strings.SplitN(mime.String(), ";", 2)[0]
	if !strings.HasPrefix(mediaType, "image/") {
		return "", types.Errorf(types.KindDecodeFailed, op, "not an image: %s", mediaType)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", types.NewError(types.KindDecodeFailed, op, err)
	}

	tooBig := e.MaxDimension > 0 && (cfg.Width > e.MaxDimension || cfg.Height > e.MaxDimension)
	if passthrough[mediaType] && !tooBig {
		return dataURL(mediaType, data), nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", types.NewError(types.KindDecodeFailed, op, err)
	}
	if tooBig {
		img = downscale(img, e.MaxDimension)
	}

	quality := e.Quality
	if quality <= 0 {
		quality = 90
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", types.NewError(types.KindDecodeFailed, op, err)
	}
	return dataURL("image/jpeg", buf.Bytes()), nil
}

// downscale keeps the aspect ratio and fits the longer edge into max.
func downscale(src image.Image, max int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w >= h {
		h = h * max / w
		w = max
	} else {
		w = w * max / h
		h = max
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func dataURL(mediaType string, payload []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(payload)
}
