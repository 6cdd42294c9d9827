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
	"testing"

	"github.com/nfnt/resize"
	"github.com/stretchr/testify/assert"
)

func TestGetInterP(t *testing.T) {
	assert.Equal(t, resize.NearestNeighbor, GetInterP(0))
	assert.Equal(t, resize.Bicubic, GetInterP(2))
	assert.Equal(t, resize.Lanczos2, GetInterP(4))
	// everything above the ladder falls back to the best quality
	assert.Equal(t, resize.Lanczos3, GetInterP(5))
	assert.Equal(t, resize.Lanczos3, GetInterP(99))
}

func TestJPGAndPNG(t *testing.T) {
	assert.True(t, JPGAndPNG(".jpg"))
	assert.True(t, JPGAndPNG(".JPEG"))
	assert.True(t, JPGAndPNG(".png"))
	assert.False(t, JPGAndPNG(".gif"))
	assert.False(t, JPGAndPNG(".txt"))
}

func TestDefaultExtensions(t *testing.T) {
	assert.True(t, DefaultExtensions(".webp"))
	assert.True(t, DefaultExtensions(".bmp"))
	assert.False(t, DefaultExtensions(".tiff"))
}
