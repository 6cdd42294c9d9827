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
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndDecodePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")
	img := uniformImage(5, 7, color.NRGBA{R: 11, G: 22, B: 33, A: 255})
	require.NoError(t, SaveImage(path, img, 100))

	decoded, err := DecodeImageFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5, decoded.Bounds().Dx())
	assert.Equal(t, 7, decoded.Bounds().Dy())
	assert.Equal(t, RGBA{R: 11, G: 22, B: 33, A: 255}, ConvertRGBA(decoded.At(0, 0)))
}

func TestSaveImageGIF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.gif")
	img := uniformImage(4, 4, color.NRGBA{R: 200, A: 255})
	require.NoError(t, SaveImage(path, img, 100))

	decoded, err := DecodeImageFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, decoded.Bounds().Dx())
}

func TestSaveImageUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.tiff")
	img := uniformImage(2, 2, color.NRGBA{A: 255})
	assert.Error(t, SaveImage(path, img, 100))
}

func TestDecodeImageFileErrors(t *testing.T) {
	_, err := DecodeImageFile(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
	assert.IsType(t, DecodeError{}, err)
}
