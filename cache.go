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
	"sync"
)

// PaletteCache stores palettes keyed by their tile render size. Distinct
// render sizes require distinct palette instances, callers that serve many
// requests (like the web frontend) keep one cache instead of rebuilding the
// palette per request.
//
// The cache is an explicit store owned by the calling layer, the core
// pipeline functions stay pure functions of their inputs. It is safe for
// concurrent use.
type PaletteCache struct {
	mutex   *sync.Mutex
	root    string
	resizer ImageResizer
	filter  SupportedImageFunc
	numR    int
	content map[int]*Palette
}

// NewPaletteCache returns an empty cache building palettes from the given
// tile directory. resizer, filter and numRoutines are passed through to
// BuildPalette, see there for their defaults.
func NewPaletteCache(root string, resizer ImageResizer,
	filter SupportedImageFunc, numRoutines int) *PaletteCache {
	var m sync.Mutex
	return &PaletteCache{
		mutex:   &m,
		root:    root,
		resizer: resizer,
		filter:  filter,
		numR:    numRoutines,
		content: make(map[int]*Palette),
	}
}

// Get returns the palette for the given tile size, building and caching it
// on first use. Concurrent callers asking for the same size get the same
// palette instance, which is safe because palettes are immutable.
func (cache *PaletteCache) Get(tileSize int) (*Palette, error) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	if p, has := cache.content[tileSize]; has {
		return p, nil
	}
	p, buildErr := BuildPalette(cache.root, tileSize, cache.resizer, cache.filter, cache.numR)
	if buildErr != nil {
		return nil, buildErr
	}
	cache.content[tileSize] = p
	return p, nil
}
