// Copyright 2018 Fabian Wenzelmann
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
)

// Grid is the result of quantizing a source image against a palette: one
// palette index per region, stored row-major. Rows may not be empty, all
// rows have the same length.
//
// Grids are produced once and read-only afterwards, so they can be shared
// between goroutines without synchronization.
type Grid [][]int

// Rows returns the number of region rows.
func (grid Grid) Rows() int {
	return len(grid)
}

// Cols returns the number of region columns.
func (grid Grid) Cols() int {
	if len(grid) == 0 {
		return 0
	}
	return len(grid[0])
}

// Get returns the palette index at column x and row y, that is grid[y][x].
func (grid Grid) Get(x, y int) int {
	return grid[y][x]
}

// ComputeRegionColor computes the mean of the r, g and b channels over all
// pixels of img inside r. The alpha channel of the source image is ignored
// here, only tile colors use alpha aware averaging.
//
// r should be a non-empty rectangle inside the image bounds.
func ComputeRegionColor(img image.Image, r image.Rectangle) TileColor {
	if r.Empty() {
		return TileColor{}
	}
	var cr, cg, cb uint64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			rgba := ConvertRGBA(img.At(x, y))
			cr += uint64(rgba.R)
			cg += uint64(rgba.G)
			cb += uint64(rgba.B)
		}
	}
	n := float64(r.Dx() * r.Dy())
	return TileColor{
		R: float64(cr) / n,
		G: float64(cg) / n,
		B: float64(cb) / n,
	}
}

// regionRect returns the pixel rectangle of the region in column col and row
// row, clipped to the image bounds. Regions at the bottom/right border may
// therefore be smaller than tileSize x tileSize.
func regionRect(bounds image.Rectangle, tileSize, col, row int) image.Rectangle {
	x0 := bounds.Min.X + col*tileSize
	y0 := bounds.Min.Y + row*tileSize
	x1 := x0 + tileSize
	y1 := y0 + tileSize
	if x1 > bounds.Max.X {
		x1 = bounds.Max.X
	}
	if y1 > bounds.Max.Y {
		y1 = bounds.Max.Y
	}
	return image.Rect(x0, y0, x1, y1)
}

// Quantize partitions img into regions of the palette's tile size (the last
// row and column clipped to the image bounds, not padded) and matches each
// region to the nearest palette tile by squared euclidean distance of the
// average colors. The result has ceil(height / tileSize) rows and
// ceil(width / tileSize) columns.
//
// Regions are independent of each other, they're processed with numRoutines
// goroutines. For an empty image a nil grid is returned.
func Quantize(img image.Image, p *Palette, numRoutines int) (Grid, error) {
	if p == nil || p.Len() == 0 {
		return nil, NewConfigurationError("palette must not be empty")
	}
	if numRoutines <= 0 {
		numRoutines = 1
	}
	bounds := img.Bounds()
	// no division possible if bounds are empty
	if bounds.Empty() {
		return nil, nil
	}
	numRows := CeilDiv(bounds.Dy(), p.TileSize)
	numCols := CeilDiv(bounds.Dx(), p.TileSize)

	res := make(Grid, numRows)
	for i := 0; i < numRows; i++ {
		res[i] = make([]int, numCols)
	}

	type job struct {
		row, col int
	}

	jobs := make(chan job, BufferSize)
	done := make(chan bool, BufferSize)

	for w := 0; w < numRoutines; w++ {
		go func() {
			for next := range jobs {
				r := regionRect(bounds, p.TileSize, next.col, next.row)
				res[next.row][next.col] = p.NearestIndex(ComputeRegionColor(img, r))
				done <- true
			}
		}()
	}
	go func() {
		for i := 0; i < numRows; i++ {
			for j := 0; j < numCols; j++ {
				jobs <- job{row: i, col: j}
			}
		}
		close(jobs)
	}()
	for i := 0; i < numRows*numCols; i++ {
		<-done
	}

	return res, nil
}
