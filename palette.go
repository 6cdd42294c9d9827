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
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// TileColor is the representative color of a tile, the mean of the r, g and
// b channels on a 0-255 scale. The components are floats so that nearest
// neighbor distances don't suffer from premature rounding.
type TileColor struct {
	R, G, B float64
}

// SquaredDist returns the squared euclidean distance between the two colors
// in RGB space. The square root is never needed for nearest neighbor
// searches, so it is not computed.
func (c TileColor) SquaredDist(other TileColor) float64 {
	dr := c.R - other.R
	dg := c.G - other.G
	db := c.B - other.B
	return dr*dr + dg*dg + db*db
}

// ComputeTileColor computes the representative color of a tile image, that
// is the mean of the r, g and b channels over all pixels with an alpha value
// strictly greater than zero. For a fully opaque image this is simply the
// mean over all pixels. For a fully transparent image no pixel qualifies and
// the color defaults to pure black, this is a defined fallback and not an
// error.
func ComputeTileColor(img image.Image) TileColor {
	bounds := img.Bounds()
	if bounds.Empty() {
		return TileColor{}
	}
	// just to be sure we use big integers, depending on the image size we
	// might get problems
	var r, g, b, numOpaque uint64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			rgba := ConvertRGBA(img.At(x, y))
			if rgba.A == 0 {
				continue
			}
			r += uint64(rgba.R)
			g += uint64(rgba.G)
			b += uint64(rgba.B)
			numOpaque++
		}
	}
	if numOpaque == 0 {
		return TileColor{}
	}
	n := float64(numOpaque)
	return TileColor{
		R: float64(r) / n,
		G: float64(g) / n,
		B: float64(b) / n,
	}
}

// Tile is one entry of a palette: a render copy of the source image, scaled
// to the palette's tile size with the alpha channel preserved, together with
// its representative color. Tiles are created once at palette build time and
// never mutated.
type Tile struct {
	// Color is the representative color used for nearest neighbor matching.
	Color TileColor

	// Image is the render copy, always of size TileSize x TileSize.
	Image image.Image
}

// Palette is an ordered sequence of tiles, all rendered at the same size.
// The order is deterministic (lexicographic by source filename), this way
// ties in the nearest neighbor search resolve reproducibly.
//
// A palette is immutable after BuildPalette returns and may be shared freely
// between goroutines, for example across concurrently processed video
// frames.
type Palette struct {
	// TileSize is the square side in pixels each tile was rendered at.
	TileSize int

	// Tiles are the palette entries, indexed 0..Len()-1.
	Tiles []Tile
}

// Len returns the number of tiles in the palette.
func (p *Palette) Len() int {
	return len(p.Tiles)
}

// NearestIndex returns the index of the tile whose representative color has
// the smallest squared euclidean distance to c. If several tiles have
// exactly the same distance the smallest index wins; this follows directly
// from the stable linear scan and is relied upon by callers for
// reproducible output.
//
// The palette must not be empty.
func (p *Palette) NearestIndex(c TileColor) int {
	best := 0
	bestDist := p.Tiles[0].Color.SquaredDist(c)
	for i := 1; i < len(p.Tiles); i++ {
		if dist := p.Tiles[i].Color.SquaredDist(c); dist < bestDist {
			bestDist = dist
			best = i
		}
	}
	return best
}

// listTileFiles returns the usable image files of a directory in
// lexicographic order.
func listTileFiles(root string, filter SupportedImageFunc) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	// os.ReadDir sorts by filename, which is exactly the deterministic order
	// we need
	res := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && filter(filepath.Ext(entry.Name())) {
			res = append(res, filepath.Join(root, entry.Name()))
		}
	}
	return res, nil
}

func loadTile(path string, tileSize int, resizer ImageResizer) (Tile, error) {
	r, openErr := os.Open(path)
	if openErr != nil {
		return Tile{}, openErr
	}
	defer r.Close()
	img, _, decodeErr := image.Decode(r)
	if decodeErr != nil {
		return Tile{}, NewDecodeError(path, decodeErr)
	}
	size := uint(tileSize)
	return Tile{
		Color: ComputeTileColor(img),
		Image: resizer.Resize(size, size, img),
	}, nil
}

// BuildPalette loads all usable tile images from the given directory and
// returns a palette rendered at the given tile size.
//
// Files are processed in lexicographic filename order and tiles keep that
// order in the palette. Files that cannot be decoded are logged and skipped.
// If the directory contains no usable image at all, or if tileSize is not
// positive, a ConfigurationError is returned.
//
// filter decides which file extensions are considered, nil means
// DefaultExtensions. Tiles are loaded with numRoutines goroutines.
func BuildPalette(root string, tileSize int, resizer ImageResizer,
	filter SupportedImageFunc, numRoutines int) (*Palette, error) {
	if tileSize <= 0 {
		return nil, NewConfigurationError("tile size must be positive, got %d", tileSize)
	}
	if resizer == nil {
		resizer = DefaultResizer
	}
	if filter == nil {
		filter = DefaultExtensions
	}
	if numRoutines <= 0 {
		numRoutines = 1
	}
	root, absErr := filepath.Abs(root)
	if absErr != nil {
		return nil, absErr
	}
	files, listErr := listTileFiles(root, filter)
	if listErr != nil {
		return nil, NewConfigurationError("can't read tile directory %s: %v", root, listErr)
	}

	// load tiles concurrently, loaded keeps the lexicographic order, failed
	// slots stay nil and are dropped below
	loaded := make([]*Tile, len(files))

	jobs := make(chan int, BufferSize)
	done := make(chan bool, BufferSize)

	for w := 0; w < numRoutines; w++ {
		go func() {
			for next := range jobs {
				tile, tileErr := loadTile(files[next], tileSize, resizer)
				if tileErr != nil {
					log.WithFields(log.Fields{
						log.ErrorKey: tileErr,
						"path":       files[next],
					}).Warn("Skipping unusable tile image")
				} else {
					loaded[next] = &tile
				}
				done <- true
			}
		}()
	}
	go func() {
		for i := range files {
			jobs <- i
		}
		close(jobs)
	}()
	for range files {
		<-done
	}

	res := &Palette{TileSize: tileSize, Tiles: make([]Tile, 0, len(files))}
	for _, tile := range loaded {
		if tile != nil {
			res.Tiles = append(res.Tiles, *tile)
		}
	}
	if res.Len() == 0 {
		return nil, NewConfigurationError("no usable tile images in %s", root)
	}
	return res, nil
}
