package message

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// ImageFormat is a raster format recognized by extension.
type ImageFormat struct {
	Name   string
	decode func(io.Reader) (image.Image, error)
}

var imageFormats = map[string]ImageFormat{
	"jpg":  {Name: "jpeg", decode: jpeg.Decode},
	"jpeg": {Name: "jpeg", decode: jpeg.Decode},
	"png":  {Name: "png", decode: png.Decode},
	"gif":  {Name: "gif", decode: gif.Decode},
	"bmp":  {Name: "bmp", decode: bmp.Decode},
	"tif":  {Name: "tiff", decode: tiff.Decode},
	"tiff": {Name: "tiff", decode: tiff.Decode},
	"webp": {Name: "webp", decode: webp.Decode},
}

// LookupImageFormat returns the format registered for ext, ignoring case and a
// leading dot.
func LookupImageFormat(ext string) (ImageFormat, bool) {
	f, ok := imageFormats[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return f, ok
}

// DecodeImage decodes data strictly as the format named by ext.
func DecodeImage(data []byte, ext string) (image.Image, error) {
	format, ok := LookupImageFormat(ext)
	if !ok {
		return nil, errors.Wrapf(ErrUnrecognizedImageFormat, ".%s", ext)
	}

	img, err := format.decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(ErrImageDecode, "%s: %v", format.Name, err)
	}

	return img, nil
}
