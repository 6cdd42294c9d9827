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

package web

import (
	"github.com/BurntSushi/toml"
)

// Config is the server configuration. All fields have sensible defaults,
// only TileDir is required.
type Config struct {
	// Addr is the listen address.
	Addr string `toml:"addr"`

	// TileDir is the directory containing the tile (emoji) images.
	TileDir string `toml:"tile_dir"`

	// FFMPEGPath is the path of the ffmpeg binary, empty means lookup in
	// $PATH.
	FFMPEGPath string `toml:"ffmpeg_path"`

	// JobsDir is the directory job uploads and outputs are stored in, empty
	// means a directory under the system temp directory.
	JobsDir string `toml:"jobs_dir"`

	// MaxUploadBytes limits the size of uploads.
	MaxUploadBytes int64 `toml:"max_upload_bytes"`

	// MaxVideoSeconds limits the duration of uploaded videos.
	MaxVideoSeconds float64 `toml:"max_video_seconds"`

	// MaxBlockSide is the block merge bound used for uploaded media.
	MaxBlockSide int `toml:"max_block_side"`

	// NumRoutines is the number of goroutines used inside one render, 0
	// means a default based on the number of CPUs.
	NumRoutines int `toml:"num_routines"`
}

// DefaultConfig returns the configuration used when no config file is
// given. The limits mirror the public demo deployment: 20 MB uploads,
// videos of at most 15 seconds.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:5050",
		MaxUploadBytes:  20 * 1024 * 1024,
		MaxVideoSeconds: 15.0,
		MaxBlockSide:    10,
	}
}

// LoadConfig reads a TOML config file, unset fields keep their defaults.
func LoadConfig(path string) (Config, error) {
	res := DefaultConfig()
	if _, decodeErr := toml.DecodeFile(path, &res); decodeErr != nil {
		return res, decodeErr
	}
	return res, nil
}
