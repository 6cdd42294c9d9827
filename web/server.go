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

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/klauspost/compress/gzhttp"

	"github.com/humbertogesser/Emojify"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrAlreadyHandled is returned by handlers that wrote the response
	// themselves, the JSON wrapper then does nothing.
	ErrAlreadyHandled = errors.New("Error was already handled")
)

const (
	// maxFrameDim is the bound live frames are scaled down to before
	// rendering, browsers post webcam frames much larger than useful.
	maxFrameDim = 640

	// jobMaxAge is how long finished jobs (and their files) are kept.
	jobMaxAge = 24 * time.Hour
)

// Server is the web frontend: it accepts image and video uploads, processes
// them through a single background worker and exposes polling and download
// endpoints. All mosaic work goes through the emojify pipeline, palettes are
// shared through a size keyed cache.
type Server struct {
	cfg         Config
	numRoutines int
	palettes    *emojify.PaletteCache
	ffmpeg      emojify.FFMPEG
	jobs        JobStore
	queue       chan *Job
	jobsDir     string
}

// NewServer returns a new server for the given configuration. The tile
// directory must be set; the palette for a requested tile size is built
// lazily on first use.
func NewServer(cfg Config) (*Server, error) {
	if cfg.TileDir == "" {
		return nil, emojify.NewConfigurationError("tile directory must be set")
	}
	numRoutines := cfg.NumRoutines
	if numRoutines <= 0 {
		numRoutines = runtime.NumCPU() * 2
		if numRoutines <= 0 {
			// don't know if this can happen, better safe than sorry
			numRoutines = 4
		}
	}
	jobsDir := cfg.JobsDir
	if jobsDir == "" {
		jobsDir = filepath.Join(os.TempDir(), "emojify_jobs")
	}
	if mkdirErr := os.MkdirAll(jobsDir, 0700); mkdirErr != nil {
		return nil, mkdirErr
	}
	return &Server{
		cfg:         cfg,
		numRoutines: numRoutines,
		palettes:    emojify.NewPaletteCache(cfg.TileDir, emojify.DefaultResizer, nil, numRoutines),
		ffmpeg:      emojify.NewFFMPEG(cfg.FFMPEGPath),
		jobs:        NewMemJobStore(),
		queue:       make(chan *Job, emojify.BufferSize),
		jobsDir:     jobsDir,
	}, nil
}

// ListenAndServe starts the background worker and serves the HTTP API until
// the listener fails.
func (s *Server) ListenAndServe() error {
	go s.worker()
	go s.janitor()
	log.WithField("addr", s.cfg.Addr).Info("Starting emojify web frontend")
	return http.ListenAndServe(s.cfg.Addr, s.Routes())
}

// Routes returns the HTTP handler of the server, responses are compressed.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/process", s.toHTTPFunc(processHandler))
	mux.HandleFunc("/status/", s.toHTTPFunc(statusHandler))
	mux.HandleFunc("/download/", s.toHTTPFunc(downloadHandler))
	mux.HandleFunc("/process_frame", s.toHTTPFunc(frameHandler))
	return gzhttp.GzipHandler(mux)
}

// handlerFunc is a handler returning a JSON serializable result (or
// ErrAlreadyHandled if it wrote the response itself).
type handlerFunc func(s *Server, w http.ResponseWriter, r *http.Request) (interface{}, error)

func (s *Server) toHTTPFunc(handler handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jsonData, err := handler(s, w, r); err != nil {
			if err != ErrAlreadyHandled {
				log.WithError(err).Error("Error in request")
				http.Error(w, "Internal Server Error", 500)
			}
		} else {
			jData, jErr := json.Marshal(jsonData)
			if jErr != nil {
				log.WithError(jErr).Error("Internal error: Can't marshal json")
				http.Error(w, "Internal Server Error", 500)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write(jData)
		}
	}
}

func jsonError(w http.ResponseWriter, message string, code int) (interface{}, error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
	return nil, ErrAlreadyHandled
}

// clampForm parses an integer form value, limited to [min, max]. Missing or
// malformed values yield the default.
func clampForm(r *http.Request, key string, min, max, defaultVal int) int {
	val, parseErr := strconv.Atoi(r.FormValue(key))
	if parseErr != nil {
		return defaultVal
	}
	return emojify.Clamp(val, min, max)
}

func processHandler(s *Server, w http.ResponseWriter, r *http.Request) (interface{}, error) {
	if r.Method != http.MethodPost {
		return jsonError(w, "Method not allowed", 405)
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	media, header, fileErr := r.FormFile("media")
	if fileErr != nil {
		// older frontend versions posted the field as "video"
		media, header, fileErr = r.FormFile("video")
	}
	if fileErr != nil {
		return jsonError(w, "Missing file", 400)
	}
	defer media.Close()
	if header.Filename == "" {
		return jsonError(w, "No file selected", 400)
	}

	fps := clampForm(r, "fps", 1, 30, 8)
	size := clampForm(r, "size", 4, 48, 12)

	// validate everything that doesn't need the file content before touching
	// the disk, rejected uploads must not leave files behind
	kind := DetectMediaKind(header.Filename, header.Header.Get("Content-Type"))
	if kind == KindUnknown {
		return jsonError(w, "Unsupported file type. Use video or image files.", 400)
	}
	outFormat := strings.ToLower(r.FormValue("format"))
	if kind == KindVideo {
		if outFormat == "" {
			outFormat = "mp4"
		}
		if outFormat != "mp4" && outFormat != "gif" {
			return jsonError(w, "Invalid format for video", 400)
		}
	} else {
		if outFormat == "" {
			outFormat = "png"
		}
		if outFormat != "png" && outFormat != "jpg" && outFormat != "jpeg" {
			return jsonError(w, "Invalid format for image", 400)
		}
	}

	id, idErr := GenJobID()
	if idErr != nil {
		return nil, idErr
	}
	jobDir := filepath.Join(s.jobsDir, id.String())
	if mkdirErr := os.MkdirAll(jobDir, 0700); mkdirErr != nil {
		return nil, mkdirErr
	}
	inputPath := filepath.Join(jobDir, filepath.Base(header.Filename))
	if saveErr := saveUpload(media, inputPath); saveErr != nil {
		os.RemoveAll(jobDir)
		return nil, saveErr
	}

	// the duration check needs the saved file
	if kind == KindVideo {
		if duration := s.ffmpeg.Duration(inputPath); duration > s.cfg.MaxVideoSeconds {
			os.RemoveAll(jobDir)
			return jsonError(w,
				fmt.Sprintf("Video must be %.0f seconds or less", s.cfg.MaxVideoSeconds), 400)
		}
	}

	job := NewJob(id, inputPath, fps, size, outFormat, kind)
	if setErr := s.jobs.Set(job); setErr != nil {
		return nil, setErr
	}
	s.queue <- job

	return map[string]string{
		"job_id":     job.ID.String(),
		"media_kind": kind.String(),
	}, nil
}

func saveUpload(src io.Reader, path string) error {
	f, createErr := os.Create(path)
	if createErr != nil {
		return createErr
	}
	defer f.Close()
	_, copyErr := io.Copy(f, src)
	return copyErr
}

// jobFromPath resolves the job id in the last path segment of r.
func (s *Server) jobFromPath(r *http.Request, prefix string) (*Job, error) {
	id, parseErr := ParseJobID(strings.TrimPrefix(r.URL.Path, prefix))
	if parseErr != nil {
		return nil, parseErr
	}
	return s.jobs.Get(id)
}

func statusHandler(s *Server, w http.ResponseWriter, r *http.Request) (interface{}, error) {
	job, jobErr := s.jobFromPath(r, "/status/")
	if jobErr != nil {
		return jsonError(w, "Not found", 404)
	}
	status, progress, message := job.State()
	return map[string]interface{}{
		"status":   status.String(),
		"progress": progress,
		"message":  message,
	}, nil
}

func downloadHandler(s *Server, w http.ResponseWriter, r *http.Request) (interface{}, error) {
	job, jobErr := s.jobFromPath(r, "/download/")
	if jobErr != nil {
		return jsonError(w, "Not found", 404)
	}
	status, _, _ := job.State()
	if status != StatusDone {
		return jsonError(w, "Not ready", 400)
	}
	var filename string
	if job.Kind == KindImage {
		ext := "png"
		if job.OutFormat == "jpg" || job.OutFormat == "jpeg" {
			ext = "jpg"
		}
		filename = "emojify." + ext
	} else {
		filename = "emojify.mp4"
		if job.OutFormat == "gif" {
			filename = "emojify.gif"
		}
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, job.OutputPath())
	return nil, ErrAlreadyHandled
}

// frameHandler renders a single posted frame synchronously, it backs the
// live webcam preview. Frames are scaled down to at most maxFrameDim pixels
// before rendering.
func frameHandler(s *Server, w http.ResponseWriter, r *http.Request) (interface{}, error) {
	if r.Method != http.MethodPost {
		return jsonError(w, "Method not allowed", 405)
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	frame, _, fileErr := r.FormFile("frame")
	if fileErr != nil {
		return jsonError(w, "No frame", 400)
	}
	defer frame.Close()

	size := clampForm(r, "size", 4, 48, 12)
	maxBlock := clampForm(r, "max_block", 1, 20, 8)

	img, _, decodeErr := image.Decode(frame)
	if decodeErr != nil {
		return jsonError(w, "Can't decode frame", 400)
	}
	// Fit only scales down, small frames pass through unchanged
	img = imaging.Fit(img, maxFrameDim, maxFrameDim, imaging.Lanczos)

	palette, paletteErr := s.palettes.Get(size)
	if paletteErr != nil {
		return nil, paletteErr
	}
	mosaic, renderErr := emojify.RenderMosaic(img, palette, 1, maxBlock, s.numRoutines, nil)
	if renderErr != nil {
		return nil, renderErr
	}

	w.Header().Set("Content-Type", "image/jpeg")
	if encodeErr := jpeg.Encode(w, mosaic, &jpeg.Options{Quality: 85}); encodeErr != nil {
		log.WithError(encodeErr).Error("Can't encode frame response")
	}
	return nil, ErrAlreadyHandled
}

// worker consumes the job queue. A single worker serializes all heavy
// processing, uploads simply wait in line.
func (s *Server) worker() {
	for job := range s.queue {
		s.runJob(job)
	}
}

// janitor periodically drops expired jobs and their files.
func (s *Server) janitor() {
	for range time.Tick(time.Hour) {
		s.cleanupExpired()
	}
}

// cleanupExpired drops all expired jobs from the store and removes their job
// directories (upload and output files).
func (s *Server) cleanupExpired() {
	expired, filterErr := s.jobs.Filter(jobMaxAge)
	if filterErr != nil {
		log.WithError(filterErr).Warn("Can't filter expired jobs")
		return
	}
	for _, job := range expired {
		if rmErr := os.RemoveAll(filepath.Dir(job.InputPath)); rmErr != nil {
			log.WithFields(log.Fields{
				log.ErrorKey: rmErr,
				"job":        job.ID.String(),
			}).Warn("Can't remove expired job directory")
		}
	}
}

func (s *Server) runJob(job *Job) {
	job.Update(StatusProcessing, 10, "Starting...")
	logEntry := log.WithFields(log.Fields{
		"job":  job.ID.String(),
		"kind": job.Kind.String(),
	})
	logEntry.Info("Processing job")

	palette, paletteErr := s.palettes.Get(job.Size)
	if paletteErr != nil {
		logEntry.WithError(paletteErr).Error("Can't build palette")
		job.Fail("Processing failed")
		return
	}

	job.Update(StatusProcessing, 30, "Rendering mosaic...")
	jobDir := filepath.Dir(job.InputPath)

	if job.Kind == KindImage {
		img, decodeErr := emojify.DecodeImageFile(job.InputPath)
		if decodeErr != nil {
			logEntry.WithError(decodeErr).Error("Image processing failed")
			job.Fail("Image processing failed")
			return
		}
		mosaic, renderErr := emojify.RenderMosaic(img, palette, 1, s.cfg.MaxBlockSide,
			s.numRoutines, nil)
		if renderErr != nil {
			logEntry.WithError(renderErr).Error("Image processing failed")
			job.Fail("Image processing failed")
			return
		}
		job.Update(StatusProcessing, 85, "Encoding image...")
		out := filepath.Join(jobDir, "output.png")
		quality := 100
		if job.OutFormat == "jpg" || job.OutFormat == "jpeg" {
			out = filepath.Join(jobDir, "output.jpg")
			quality = 95
		}
		if saveErr := emojify.SaveImage(out, mosaic, quality); saveErr != nil {
			logEntry.WithError(saveErr).Error("Image processing failed")
			job.Fail("Image processing failed")
			return
		}
		job.Finish(out)
		logEntry.Info("Job done")
		return
	}

	out := filepath.Join(jobDir, "output.mp4")
	if job.OutFormat == "gif" {
		out = filepath.Join(jobDir, "output.gif")
	}
	// rendering moves progress from 30 to 80, the last frame switches to the
	// encode message
	progress := func(max int) emojify.ProgressFunc {
		return func(num int) {
			if num >= max {
				job.Update(StatusProcessing, 80, "Encoding video...")
				return
			}
			job.Update(StatusProcessing, 30+(50*num)/max,
				fmt.Sprintf("Rendered %d of %d frames...", num, max))
		}
	}
	if videoErr := emojify.RenderVideo(s.ffmpeg, job.InputPath, out, palette,
		1, s.cfg.MaxBlockSide, job.FPS, s.numRoutines, nil, progress); videoErr != nil {
		logEntry.WithError(videoErr).Error("Video processing failed")
		job.Fail("Video processing failed")
		return
	}
	job.Finish(out)
	logEntry.Info("Job done")
}
