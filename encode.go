// Copyright 2026 Humberto Gesser
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package emojify

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/ericpauley/go-quantize/quantize"
)

// DecodeImageFile opens and decodes a source image. Failures are wrapped in
// a DecodeError so that sequence drivers can tell bad items from fatal
// errors.
func DecodeImageFile(path string) (image.Image, error) {
	r, openErr := os.Open(path)
	if openErr != nil {
		return nil, NewDecodeError(path, openErr)
	}
	defer r.Close()
	img, _, decodeErr := image.Decode(r)
	if decodeErr != nil {
		return nil, NewDecodeError(path, decodeErr)
	}
	return img, nil
}

// palettedImage reduces img to at most 256 colors with a median cut
// quantizer, as required by the GIF format.
func palettedImage(img image.Image) *image.Paletted {
	q := quantize.MedianCutQuantizer{}
	pal := q.Quantize(make(color.Palette, 0, 256), img)
	res := image.NewPaletted(img.Bounds(), pal)
	draw.Draw(res, img.Bounds(), img, img.Bounds().Min, draw.Src)
	return res
}

// SaveImage writes img to the given file, the format is chosen by the file
// extension: png, jpg / jpeg (with the given quality between 1 and 100) and
// gif are supported.
func SaveImage(file string, img image.Image, jpgQuality int) error {
	f, openErr := os.Create(file)
	if openErr != nil {
		return openErr
	}
	defer f.Close()
	switch ext := strings.ToLower(filepath.Ext(file)); ext {
	case ".png":
		return png.Encode(f, img)
	case ".jpg", ".jpeg":
		return jpeg.Encode(f, img, &jpeg.Options{Quality: jpgQuality})
	case ".gif":
		return gif.Encode(f, palettedImage(img), nil)
	default:
		return fmt.Errorf("Unsupported output format: %s", ext)
	}
}
