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
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPalette returns a palette with the given representative colors, the
// render images are uniform tiles of the matching color.
func testPalette(tileSize int, colors ...TileColor) *Palette {
	p := &Palette{TileSize: tileSize}
	for _, c := range colors {
		p.Tiles = append(p.Tiles, Tile{
			Color: c,
			Image: uniformImage(tileSize, tileSize, color.NRGBA{
				R: uint8(c.R), G: uint8(c.G), B: uint8(c.B), A: 255,
			}),
		})
	}
	return p
}

func TestQuantizeGridShape(t *testing.T) {
	p := testPalette(8, TileColor{})
	img := uniformImage(64, 64, color.NRGBA{A: 255})
	grid, err := Quantize(img, p, 2)
	require.NoError(t, err)
	assert.Equal(t, 8, grid.Rows())
	assert.Equal(t, 8, grid.Cols())
}

func TestQuantizeGridShapeClipped(t *testing.T) {
	// 65 x 17 with tile size 8 gives ceil shapes 9 columns, 3 rows
	p := testPalette(8, TileColor{})
	img := uniformImage(65, 17, color.NRGBA{A: 255})
	grid, err := Quantize(img, p, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, grid.Rows())
	assert.Equal(t, 9, grid.Cols())
}

func TestQuantizeSingleTilePalette(t *testing.T) {
	p := testPalette(8, TileColor{R: 42, G: 42, B: 42})
	img := uniformImage(32, 16, color.NRGBA{R: 250, G: 3, B: 77, A: 255})
	grid, err := Quantize(img, p, 3)
	require.NoError(t, err)
	want := Grid{
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}
	if diff := cmp.Diff(want, grid); diff != "" {
		t.Errorf("Grid mismatch (-want +got):\n%s", diff)
	}
}

func TestQuantizeBlackWhite(t *testing.T) {
	p := testPalette(8, TileColor{}, TileColor{R: 255, G: 255, B: 255})

	dark := uniformImage(8, 8, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	grid, err := Quantize(dark, p, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, grid.Get(0, 0))

	bright := uniformImage(8, 8, color.NRGBA{R: 250, G: 250, B: 250, A: 255})
	grid, err = Quantize(bright, p, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, grid.Get(0, 0))

	// 127 is still strictly nearer to black
	mid := uniformImage(8, 8, color.NRGBA{R: 127, G: 127, B: 127, A: 255})
	grid, err = Quantize(mid, p, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, grid.Get(0, 0))
}

func TestQuantizeHalfWayTieToLowestIndex(t *testing.T) {
	p := testPalette(2, TileColor{}, TileColor{R: 255, G: 255, B: 255})
	// region mean 127.5 on every channel, exactly half way between the two
	// palette entries
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 127, G: 127, B: 127, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 127, G: 127, B: 127, A: 255})

	grid, err := Quantize(img, p, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, grid.Get(0, 0))
}

func TestQuantizeEmptyPaletteFails(t *testing.T) {
	img := uniformImage(8, 8, color.NRGBA{A: 255})
	_, err := Quantize(img, &Palette{TileSize: 8}, 1)
	require.Error(t, err)
	assert.IsType(t, ConfigurationError{}, err)
}

func TestComputeRegionColorClippedRegion(t *testing.T) {
	// 3 x 2 region at the image border
	img := uniformImage(3, 2, color.NRGBA{R: 60, G: 90, B: 120, A: 255})
	c := ComputeRegionColor(img, image.Rect(0, 0, 3, 2))
	assert.Equal(t, TileColor{R: 60, G: 90, B: 120}, c)
}

func TestComputeRegionColorIgnoresSourceAlpha(t *testing.T) {
	// transparent pixels still contribute their rgb values for source images
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 100, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 200, A: 0})
	c := ComputeRegionColor(img, img.Bounds())
	assert.InDelta(t, 150.0, c.R, 1e-9)
}
