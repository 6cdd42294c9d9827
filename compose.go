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
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
)

var (
	// ImageCacheSize is the size of image caches. Flat areas of a source
	// image produce the same enlarged tile over and over again, caching the
	// scaled versions makes composition much faster. This variable controls
	// the size of such caches, it must be a number ≥ 1.
	ImageCacheSize = 15
)

// ImageCache caches scaled versions of palette tiles during mosaic
// composition, keyed by palette index and target pixel size. It evicts the
// oldest entry once full.
//
// Caches are safe for concurrent use.
type ImageCache struct {
	m           *sync.Mutex
	size        int
	content     map[string]image.Image
	insertOrder []string
}

// NewImageCache returns an empty image cache. size is the number of images
// that will be cached. size must be ≥ 1.
func NewImageCache(size int) *ImageCache {
	if size <= 0 {
		size = 1
	}
	var m sync.Mutex
	return &ImageCache{
		m:           &m,
		size:        size,
		content:     make(map[string]image.Image, size),
		insertOrder: make([]string, 0, size),
	}
}

func (cache *ImageCache) keyFormat(index, targetSize int) string {
	return fmt.Sprintf("%d-%d", index, targetSize)
}

func (cache *ImageCache) lookup(key string) image.Image {
	if img, has := cache.content[key]; has {
		return img
	}
	return nil
}

// Put adds a scaled tile to the cache. Usually Put is called after Get: If
// the image was not found in the cache it is scaled and then added to the
// cache via Put.
func (cache *ImageCache) Put(index, targetSize int, img image.Image) {
	cache.m.Lock()
	defer cache.m.Unlock()
	keyFmt := cache.keyFormat(index, targetSize)
	// first check if image already in cache, if yes do nothing
	if lookup := cache.lookup(keyFmt); lookup != nil {
		return
	}
	if len(cache.insertOrder) < cache.size {
		cache.insertOrder = append(cache.insertOrder, keyFmt)
		cache.content[keyFmt] = img
	} else {
		// cache full, remove first element from cache
		// since size must be >= 1 this should be fine
		fst := cache.insertOrder[0]
		cache.insertOrder = cache.insertOrder[1:]
		cache.insertOrder = append(cache.insertOrder, keyFmt)
		delete(cache.content, fst)
		cache.content[keyFmt] = img
	}
}

// Get returns the scaled tile from the cache. If the return value is nil the
// image was not found in the cache and should be added to the cache by Put.
func (cache *ImageCache) Get(index, targetSize int) image.Image {
	cache.m.Lock()
	defer cache.m.Unlock()
	keyFmt := cache.keyFormat(index, targetSize)
	return cache.lookup(keyFmt)
}

// scaledTile returns the render image of the tile with the given palette
// index, scaled to targetSize x targetSize pixels, consulting the cache
// first. The pre-rendered tile is returned as is when it already has the
// target size, in the common side = zoom = 1 case no resampling happens at
// all.
func scaledTile(p *Palette, cache *ImageCache, resizer ImageResizer,
	index, targetSize int) image.Image {
	tile := p.Tiles[index].Image
	if targetSize == p.TileSize {
		return tile
	}
	if img := cache.Get(index, targetSize); img != nil {
		return img
	}
	img := resizer.Resize(uint(targetSize), uint(targetSize), tile)
	cache.Put(index, targetSize, img)
	return img
}

// Compose paints the placement plan onto a new canvas of size
// (cols * tileSize * zoom) x (rows * tileSize * zoom) and returns it. Blocks
// with side > 1 (or any placement when zoom > 1) use the tile image enlarged
// to side * tileSize * zoom.
//
// Tiles are pasted with their alpha channel as mask over an opaque black
// background: transparent tile pixels show the background, they never
// overwrite canvas content. Since placements don't overlap the result does
// not depend on paste order. The returned canvas is fully opaque.
func Compose(grid Grid, plan PlacementPlan, p *Palette, zoom int,
	resizer ImageResizer) (image.Image, error) {
	if p == nil || p.Len() == 0 {
		return nil, NewConfigurationError("palette must not be empty")
	}
	if zoom < 1 {
		return nil, NewConfigurationError("zoom factor must be at least 1, got %d", zoom)
	}
	if resizer == nil {
		resizer = DefaultResizer
	}
	cellSize := p.TileSize * zoom
	res := image.NewRGBA(image.Rect(0, 0, grid.Cols()*cellSize, grid.Rows()*cellSize))
	draw.Draw(res, res.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	cache := NewImageCache(ImageCacheSize)
	for _, placement := range plan {
		if placement.Side < 1 ||
			placement.Row < 0 || placement.Row+placement.Side > grid.Rows() ||
			placement.Col < 0 || placement.Col+placement.Side > grid.Cols() {
			return nil, NewConsistencyError("placement %v outside %dx%d grid",
				placement, grid.Rows(), grid.Cols())
		}
		tile := scaledTile(p, cache, resizer, placement.Index, placement.Side*cellSize)
		target := image.Rect(
			placement.Col*cellSize,
			placement.Row*cellSize,
			placement.Col*cellSize+placement.Side*cellSize,
			placement.Row*cellSize+placement.Side*cellSize,
		)
		draw.Draw(res, target, tile, tile.Bounds().Min, draw.Over)
	}
	return res, nil
}

// RenderMosaic runs the full pipeline for one image: quantize the image
// against the palette, merge uniform blocks up to maxSide and compose the
// output canvas. The canvas has size
// ceil(width / tileSize) * tileSize * zoom x
// ceil(height / tileSize) * tileSize * zoom.
//
// The palette is only read, RenderMosaic may be called concurrently with the
// same palette, for example for independent video frames.
func RenderMosaic(img image.Image, p *Palette, zoom, maxSide, numRoutines int,
	resizer ImageResizer) (image.Image, error) {
	if maxSide < 1 {
		return nil, NewConfigurationError("max block side must be at least 1, got %d", maxSide)
	}
	if zoom < 1 {
		return nil, NewConfigurationError("zoom factor must be at least 1, got %d", zoom)
	}
	grid, quantizeErr := Quantize(img, p, numRoutines)
	if quantizeErr != nil {
		return nil, quantizeErr
	}
	plan, mergeErr := MergeBlocks(grid, maxSide)
	if mergeErr != nil {
		return nil, mergeErr
	}
	return Compose(grid, plan, p, zoom, resizer)
}
