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
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// FFMPEG invokes the external ffmpeg binary for everything video related:
// extracting a video into a numbered frame sequence and encoding a rendered
// frame sequence back into a video or animated GIF. The mosaic pipeline
// itself never touches containers, codecs or audio.
type FFMPEG struct {
	// Path is the path of the ffmpeg binary. If empty the binary is looked
	// up in $PATH.
	Path string
}

// NewFFMPEG returns an FFMPEG wrapper for the given binary path, the empty
// string means lookup in $PATH.
func NewFFMPEG(path string) FFMPEG {
	return FFMPEG{Path: path}
}

func (f FFMPEG) binary() string {
	if f.Path != "" {
		return f.Path
	}
	return "ffmpeg"
}

// run executes ffmpeg with the given arguments. stderr is captured for
// error reporting, ffmpeg writes all its diagnostics there.
func (f FFMPEG) run(label string, args ...string) error {
	log.WithFields(log.Fields{
		"binary": f.binary(),
		"args":   strings.Join(args, " "),
	}).Debug(label)
	cmd := exec.Command(f.binary(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if runErr := cmd.Run(); runErr != nil {
		return fmt.Errorf("%s failed: %v: %s", label, runErr, stderr.String())
	}
	return nil
}

// ExtractFrames extracts video into still images at the given frame rate.
// pattern is an ffmpeg output pattern like "frame-%05d.png".
func (f FFMPEG) ExtractFrames(video, pattern string, fps int) error {
	return f.run("Extracting frames",
		"-y", "-i", video, "-vf", fmt.Sprintf("fps=%d", fps), pattern)
}

// EncodeVideo encodes a numbered frame sequence (pattern like
// "frame-%05d.png") into an h264 mp4 file at the given frame rate.
func (f FFMPEG) EncodeVideo(pattern, out string, fps int) error {
	return f.run("Encoding video",
		"-y", "-framerate", strconv.Itoa(fps), "-i", pattern,
		"-c:v", "libx264", "-pix_fmt", "yuv420p", "-r", strconv.Itoa(fps), out)
}

// EncodeGIF converts a video file into an animated GIF using ffmpeg's two
// pass palettegen / paletteuse filters. workDir is used for the generated
// palette image.
func (f FFMPEG) EncodeGIF(video, workDir, out string) error {
	palette := filepath.Join(workDir, "palette.png")
	if genErr := f.run("Generating GIF palette",
		"-y", "-i", video, "-vf", "fps=10,palettegen", palette); genErr != nil {
		return genErr
	}
	return f.run("Encoding GIF",
		"-y", "-i", video, "-i", palette, "-lavfi", "fps=10,paletteuse", out)
}

// ProgressBuilder returns a ProgressFunc once the total number of items is
// known. The frame count of a video is only known after extraction, video
// callers therefore pass a builder instead of a ready ProgressFunc.
type ProgressBuilder func(max int) ProgressFunc

var durationRx = regexp.MustCompile(`Duration:\s(\d+):(\d+):(\d+(?:\.\d+)?)`)

// parseDuration extracts the duration in seconds from ffmpeg's diagnostic
// output. Output without a duration line yields 0.
func parseDuration(out string) float64 {
	match := durationRx.FindStringSubmatch(out)
	if match == nil {
		return 0
	}
	hours, _ := strconv.Atoi(match[1])
	minutes, _ := strconv.Atoi(match[2])
	seconds, _ := strconv.ParseFloat(match[3], 64)
	return float64(hours)*3600 + float64(minutes)*60 + seconds
}

// Duration probes the duration of a video in seconds by parsing ffmpeg's
// stderr output. A video without a duration line yields 0.
func (f FFMPEG) Duration(video string) float64 {
	cmd := exec.Command(f.binary(), "-i", video)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// ffmpeg exits non-zero without an output file, the diagnostics we're
	// after are written anyway
	cmd.Run()
	return parseDuration(stderr.String())
}

// renderFrames renders all extracted frames with numRoutines goroutines.
// Frames are processed independently of each other, no state is carried
// between them (an accepted trade-off: nearest neighbor choices may flicker
// between frames). The first error aborts the run.
func renderFrames(frames []string, p *Palette, zoom, maxSide, numRoutines int,
	resizer ImageResizer, progress ProgressFunc) error {
	if numRoutines <= 0 {
		numRoutines = 1
	}
	if progress == nil {
		progress = ProgressIgnore
	}

	jobs := make(chan string, BufferSize)
	errorChan := make(chan error, BufferSize)

	for w := 0; w < numRoutines; w++ {
		go func() {
			for frame := range jobs {
				errorChan <- renderFrame(frame, p, zoom, maxSide, resizer)
			}
		}()
	}
	go func() {
		for _, frame := range frames {
			jobs <- frame
		}
		close(jobs)
	}()

	var err error
	for i := range frames {
		if nextErr := <-errorChan; nextErr != nil && err == nil {
			err = nextErr
		}
		progress(i + 1)
	}
	return err
}

func renderFrame(frame string, p *Palette, zoom, maxSide int, resizer ImageResizer) error {
	img, decodeErr := DecodeImageFile(frame)
	if decodeErr != nil {
		return decodeErr
	}
	mosaic, renderErr := RenderMosaic(img, p, zoom, maxSide, 1, resizer)
	if renderErr != nil {
		return renderErr
	}
	out := strings.TrimSuffix(frame, filepath.Ext(frame)) + "-mosaic.png"
	return SaveImage(out, mosaic, 100)
}

// RenderVideo runs the whole video pipeline: extract video into frames at
// the given frame rate, render each frame as a mosaic and encode the
// rendered sequence into out. If out has a ".gif" extension an animated GIF
// is produced, otherwise an mp4.
//
// Frames live in a temporary directory that is removed when the function
// returns. progress is built once the frame count is known and then called
// after each rendered frame, nil means progress is logged.
func RenderVideo(ffmpeg FFMPEG, video, out string, p *Palette,
	zoom, maxSide, fps, numRoutines int, resizer ImageResizer,
	progress ProgressBuilder) error {
	if fps < 1 {
		return NewConfigurationError("frame rate must be at least 1, got %d", fps)
	}
	if progress == nil {
		progress = func(max int) ProgressFunc {
			return LoggerProgressFunc("Rendered frames", max, 10)
		}
	}
	tmpDir, tmpErr := os.MkdirTemp("", "emojify-frames")
	if tmpErr != nil {
		return tmpErr
	}
	defer os.RemoveAll(tmpDir)

	framePattern := filepath.Join(tmpDir, "frame-%05d.png")
	if extractErr := ffmpeg.ExtractFrames(video, framePattern, fps); extractErr != nil {
		return extractErr
	}

	frames, globErr := filepath.Glob(filepath.Join(tmpDir, "frame-*.png"))
	if globErr != nil {
		return globErr
	}
	sort.Strings(frames)
	if len(frames) == 0 {
		return fmt.Errorf("No frames extracted from %s", video)
	}
	log.WithField("frames", len(frames)).Info("Rendering frames")

	if renderErr := renderFrames(frames, p, zoom, maxSide, numRoutines, resizer, progress(len(frames))); renderErr != nil {
		return renderErr
	}

	mosaicPattern := filepath.Join(tmpDir, "frame-%05d-mosaic.png")
	if strings.EqualFold(filepath.Ext(out), ".gif") {
		// GIF needs the two pass palette filters, encode an intermediate mp4
		// first
		intermediate := filepath.Join(tmpDir, "mosaic.mp4")
		if encodeErr := ffmpeg.EncodeVideo(mosaicPattern, intermediate, fps); encodeErr != nil {
			return encodeErr
		}
		return ffmpeg.EncodeGIF(intermediate, tmpDir, out)
	}
	return ffmpeg.EncodeVideo(mosaicPattern, out, fps)
}
