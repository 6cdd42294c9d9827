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
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTile(t *testing.T, path string, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func testServer(t *testing.T) *Server {
	t.Helper()
	tileDir := t.TempDir()
	writeTile(t, filepath.Join(tileDir, "black.png"), color.NRGBA{A: 255})
	writeTile(t, filepath.Join(tileDir, "white.png"),
		color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	cfg := DefaultConfig()
	cfg.TileDir = tileDir
	cfg.JobsDir = t.TempDir()
	cfg.NumRoutines = 1
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

// jobDirCount returns the number of job directories the server currently has
// on disk.
func jobDirCount(t *testing.T, s *Server) int {
	t.Helper()
	entries, err := os.ReadDir(s.jobsDir)
	require.NoError(t, err)
	return len(entries)
}

func TestNewServerRequiresTileDir(t *testing.T) {
	_, err := NewServer(DefaultConfig())
	assert.Error(t, err)
}

func TestProcessRejectsGet(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/process", nil))
	assert.Equal(t, 405, rec.Code)
}

func TestProcessMissingFile(t *testing.T) {
	s := testServer(t)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("fps", "8"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/process", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	assert.Equal(t, 400, rec.Code)
	var res map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "Missing file", res["error"])
}

func TestProcessUnsupportedFileType(t *testing.T) {
	s := testServer(t)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("media", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/process", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	assert.Equal(t, 400, rec.Code)
	// rejected uploads must not leave files behind
	assert.Equal(t, 0, jobDirCount(t, s))
}

func TestProcessInvalidFormatLeavesNoFiles(t *testing.T) {
	s := testServer(t)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("media", "clip.mp4")
	require.NoError(t, err)
	_, err = part.Write([]byte("not really a video"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("format", "avi"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/process", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	assert.Equal(t, 400, rec.Code)
	assert.Equal(t, 0, jobDirCount(t, s))
}

func TestProcessQueuesImageJob(t *testing.T) {
	s := testServer(t)

	var frame bytes.Buffer
	img := image.NewNRGBA(image.Rect(0, 0, 24, 24))
	require.NoError(t, png.Encode(&frame, img))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("media", "photo.png")
	require.NoError(t, err)
	_, err = part.Write(frame.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("size", "8"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/process", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var res map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, "image", res["media_kind"])

	id, parseErr := ParseJobID(res["job_id"])
	require.NoError(t, parseErr)
	job, getErr := s.jobs.Get(id)
	require.NoError(t, getErr)
	status, _, _ := job.State()
	assert.Equal(t, StatusQueued, status)
	// the job also sits in the worker queue
	assert.Len(t, s.queue, 1)
}

func TestStatusUnknownJob(t *testing.T) {
	s := testServer(t)
	id, err := GenJobID()
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/status/"+id.String(), nil))
	assert.Equal(t, 404, rec.Code)
}

func TestStatusMalformedID(t *testing.T) {
	s := testServer(t)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/status/garbage", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestDownloadNotReady(t *testing.T) {
	s := testServer(t)
	id, err := GenJobID()
	require.NoError(t, err)
	job := NewJob(id, "in.png", 0, 12, "png", KindImage)
	require.NoError(t, s.jobs.Set(job))

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/download/"+id.String(), nil))
	assert.Equal(t, 400, rec.Code)
}

func TestDownloadFilename(t *testing.T) {
	s := testServer(t)
	out := filepath.Join(t.TempDir(), "output.gif")
	require.NoError(t, os.WriteFile(out, []byte("gif bytes"), 0644))

	id, err := GenJobID()
	require.NoError(t, err)
	job := NewJob(id, "in.mp4", 8, 12, "gif", KindVideo)
	job.Finish(out)
	require.NoError(t, s.jobs.Set(job))

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/download/"+id.String(), nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "emojify.gif")
}

func TestFrameHandlerRendersJPEG(t *testing.T) {
	s := testServer(t)

	var frame bytes.Buffer
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	require.NoError(t, png.Encode(&frame, img))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("frame", "frame.png")
	require.NoError(t, err)
	_, err = part.Write(frame.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("size", "16"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/process_frame", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	// call the handler directly, the gzip wrapper would compress the body
	s.toHTTPFunc(frameHandler)(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	decoded, _, decodeErr := image.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, decodeErr)
	// 32 x 32 input with tile size 16 gives a 2 x 2 grid
	assert.Equal(t, 32, decoded.Bounds().Dx())
	assert.Equal(t, 32, decoded.Bounds().Dy())
}

func TestCleanupExpiredRemovesJobDir(t *testing.T) {
	s := testServer(t)

	id, err := GenJobID()
	require.NoError(t, err)
	jobDir := filepath.Join(s.jobsDir, id.String())
	require.NoError(t, os.MkdirAll(jobDir, 0700))
	inputPath := filepath.Join(jobDir, "in.png")
	require.NoError(t, os.WriteFile(inputPath, []byte("png bytes"), 0644))

	job := NewJob(id, inputPath, 0, 12, "png", KindImage)
	job.created = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, s.jobs.Set(job))

	s.cleanupExpired()

	// job and directory are both gone
	_, getErr := s.jobs.Get(id)
	assert.Equal(t, ErrJobNotFound, getErr)
	_, statErr := os.Stat(jobDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCleanupExpiredKeepsFreshJobs(t *testing.T) {
	s := testServer(t)

	id, err := GenJobID()
	require.NoError(t, err)
	jobDir := filepath.Join(s.jobsDir, id.String())
	require.NoError(t, os.MkdirAll(jobDir, 0700))
	inputPath := filepath.Join(jobDir, "in.png")
	require.NoError(t, os.WriteFile(inputPath, []byte("png bytes"), 0644))
	require.NoError(t, s.jobs.Set(NewJob(id, inputPath, 0, 12, "png", KindImage)))

	s.cleanupExpired()

	_, getErr := s.jobs.Get(id)
	assert.NoError(t, getErr)
	_, statErr := os.Stat(inputPath)
	assert.NoError(t, statErr)
}

func TestClampForm(t *testing.T) {
	form := url.Values{"fps": {"100"}, "size": {"abc"}}
	req := httptest.NewRequest(http.MethodPost, "/process",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, 30, clampForm(req, "fps", 1, 30, 8))
	assert.Equal(t, 12, clampForm(req, "size", 4, 48, 12))
	assert.Equal(t, 8, clampForm(req, "missing", 1, 30, 8))
}
