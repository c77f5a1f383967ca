package classifier

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxDimension matches the capture limit of the mobile client.
const DefaultMaxDimension = 2000

var errEmptyImage = errors.New("image is empty")

// ImageHandle references a captured photograph either by path or by content.
type ImageHandle struct {
	path string
	data []byte
}

// ImageFromFile returns a handle that reads the image at path when encoded.
func ImageFromFile(path string) ImageHandle {
	return ImageHandle{path: path}
}

// ImageFromBytes returns a handle over a private copy of data.
func ImageFromBytes(data []byte) ImageHandle {
	return ImageHandle{data: append([]byte(nil), data...)}
}

// Bytes returns the raw image content.
func (h ImageHandle) Bytes() ([]byte, error) {
	if h.data != nil {
		return h.data, nil
	}
	if h.path == "" {
		return nil, errEmptyImage
	}
	return os.ReadFile(h.path)
}

func (h ImageHandle) String() string {
	if h.path != "" {
		return h.path
	}
	return fmt.Sprintf("<%d bytes>", len(h.data))
}

// EncodedImage is an image in the transport format of the vision service.
type EncodedImage struct {
	Content  string
	MIMEType string
	Width    int
	Height   int
}

// Encoder base64-encodes images, downscaling those larger than MaxDimension.
type Encoder struct {
	MaxDimension int
}

// Encode reads and encodes the image behind h. Formats without a registered
// decoder (HEIC, truncated headers) are passed through untouched when their
// content is still recognisably an image; their dimensions are left at zero.
func (e Encoder) Encode(h ImageHandle) (EncodedImage, error) {
	data, err := h.Bytes()
	if err != nil {
		return EncodedImage{}, fmt.Errorf("read image %s: %w", h, err)
	}
	if len(data) == 0 {
		return EncodedImage{}, errEmptyImage
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		mime := mimetype.Detect(data)
		if !strings.HasPrefix(mime.String(), "image/") {
			return EncodedImage{}, fmt.Errorf("decode image header: %w", err)
		}
		return EncodedImage{
			Content:  base64.StdEncoding.EncodeToString(data),
			MIMEType: mime.String(),
		}, nil
	}

	encoded := EncodedImage{MIMEType: "image/" + format, Width: cfg.Width, Height: cfg.Height}
	if e.MaxDimension > 0 && (cfg.Width > e.MaxDimension || cfg.Height > e.MaxDimension) {
		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			return EncodedImage{}, fmt.Errorf("decode image: %w", err)
		}
		resized := imaging.Fit(img, e.MaxDimension, e.MaxDimension, imaging.Lanczos)

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
			return EncodedImage{}, fmt.Errorf("encode resized image: %w", err)
		}
		data = buf.Bytes()
		encoded.MIMEType = "image/jpeg"
		encoded.Width = resized.Bounds().Dx()
		encoded.Height = resized.Bounds().Dy()
	}

	encoded.Content = base64.StdEncoding.EncodeToString(data)
	return encoded, nil
}
