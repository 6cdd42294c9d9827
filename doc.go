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

// Package emojify renders mosaic images composed of small tile images
// (usually emoji glyphs). A palette of tiles is built from a directory of
// images, each region of the source image is matched to the tile with the
// closest average color and adjacent identical tiles are merged into larger
// blocks before the result is painted onto an output canvas.
//
// The same pipeline is applied frame by frame to turn videos into mosaic
// videos; frame extraction and re-encoding is delegated to ffmpeg.
//
// It ships with an executable program for converting images and videos and
// a small web frontend that processes uploads through a job queue.
package emojify
