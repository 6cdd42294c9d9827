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
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobID identifies a processing job.
type JobID uuid.UUID

// GenJobID returns a new random job id.
func GenJobID() (JobID, error) {
	id, idErr := uuid.NewRandom()
	return JobID(id), idErr
}

// ParseJobID parses a job id from its string form.
func ParseJobID(s string) (JobID, error) {
	id, parseErr := uuid.Parse(s)
	return JobID(id), parseErr
}

func (id JobID) String() string {
	return uuid.UUID(id).String()
}

// JobStatus describes the lifecycle state of a job: it is queued, currently
// processed by the worker, done or failed.
type JobStatus int

const (
	// StatusQueued means the job waits for the worker.
	StatusQueued JobStatus = iota
	// StatusProcessing means the worker currently runs the job.
	StatusProcessing
	// StatusDone means the output file is ready for download.
	StatusDone
	// StatusError means processing failed, the message contains details.
	StatusError
)

func (status JobStatus) String() string {
	switch status {
	case StatusQueued:
		return "queued"
	case StatusProcessing:
		return "processing"
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// MediaKind distinguishes uploaded images from uploaded videos, they take
// different processing paths and allow different output formats.
type MediaKind int

const (
	// KindUnknown is used for uploads that are neither image nor video.
	KindUnknown MediaKind = iota
	// KindImage is a still image upload.
	KindImage
	// KindVideo is a video upload.
	KindVideo
)

func (kind MediaKind) String() string {
	switch kind {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

var (
	videoExtensions = map[string]bool{
		".mp4": true, ".mov": true, ".m4v": true,
		".avi": true, ".mkv": true, ".webm": true,
	}
	imageExtensions = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true, ".webp": true,
	}
)

// DetectMediaKind decides whether an upload is an image or a video, first by
// file extension, then by MIME type.
func DetectMediaKind(filename, mimeType string) MediaKind {
	ext := strings.ToLower(filepath.Ext(filename))
	mimeType = strings.ToLower(mimeType)
	switch {
	case imageExtensions[ext] || strings.HasPrefix(mimeType, "image/"):
		return KindImage
	case videoExtensions[ext] || strings.HasPrefix(mimeType, "video/"):
		return KindVideo
	default:
		return KindUnknown
	}
}

// Job is one unit of work for the background worker: one uploaded image or
// video together with its processing parameters and its mutable progress
// state. Progress state is written by the worker and read by the status
// handler, access goes through the mutex.
type Job struct {
	ID        JobID
	InputPath string
	FPS       int
	Size      int
	OutFormat string
	Kind      MediaKind

	created time.Time

	mutex      *sync.RWMutex
	status     JobStatus
	progress   int
	message    string
	outputPath string
}

// NewJob returns a new queued job.
func NewJob(id JobID, inputPath string, fps, size int, outFormat string, kind MediaKind) *Job {
	var m sync.RWMutex
	return &Job{
		ID:        id,
		InputPath: inputPath,
		FPS:       fps,
		Size:      size,
		OutFormat: outFormat,
		Kind:      kind,
		created:   time.Now().UTC(),
		mutex:     &m,
		status:    StatusQueued,
	}
}

// Update sets the lifecycle state, progress percentage and user visible
// message of the job.
func (job *Job) Update(status JobStatus, progress int, message string) {
	job.mutex.Lock()
	defer job.mutex.Unlock()
	job.status = status
	job.progress = progress
	job.message = message
}

// Finish marks the job done and records the output file.
func (job *Job) Finish(outputPath string) {
	job.mutex.Lock()
	defer job.mutex.Unlock()
	job.status = StatusDone
	job.progress = 100
	job.message = "Done"
	job.outputPath = outputPath
}

// Fail marks the job failed with the given user visible message.
func (job *Job) Fail(message string) {
	job.mutex.Lock()
	defer job.mutex.Unlock()
	job.status = StatusError
	job.message = message
}

// State returns the current lifecycle state, progress and message.
func (job *Job) State() (JobStatus, int, string) {
	job.mutex.RLock()
	defer job.mutex.RUnlock()
	return job.status, job.progress, job.message
}

// OutputPath returns the output file of a finished job, the empty string if
// the job is not done yet.
func (job *Job) OutputPath() string {
	job.mutex.RLock()
	defer job.mutex.RUnlock()
	return job.outputPath
}

// Expired returns whether the job is older than maxAge.
func (job *Job) Expired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(job.created) >= maxAge
}

var (
	// ErrJobNotFound is returned by job stores for unknown ids.
	ErrJobNotFound = errors.New("Job not found")
)

// JobStore administrates the jobs known to the server. Implementations must
// be safe for concurrent use.
//
// Filter drops all jobs older than maxAge and returns the dropped jobs, the
// caller removes their files.
type JobStore interface {
	Get(id JobID) (*Job, error)
	Set(job *Job) error
	Delete(id JobID) error
	Filter(maxAge time.Duration) ([]*Job, error)
}

// MemJobStore keeps all jobs in memory. Jobs are deliberately ephemeral:
// a restart drops them, clients simply resubmit.
type MemJobStore struct {
	mutex  *sync.RWMutex
	jobMap map[JobID]*Job
}

// NewMemJobStore returns an empty in-memory job store.
func NewMemJobStore() *MemJobStore {
	m := new(sync.RWMutex)
	return &MemJobStore{
		mutex:  m,
		jobMap: make(map[JobID]*Job, 1000),
	}
}

// Get implements JobStore.Get.
func (s *MemJobStore) Get(id JobID) (*Job, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if job, has := s.jobMap[id]; has {
		return job, nil
	}
	return nil, ErrJobNotFound
}

// Set implements JobStore.Set.
func (s *MemJobStore) Set(job *Job) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.jobMap[job.ID] = job
	return nil
}

// Delete implements JobStore.Delete.
func (s *MemJobStore) Delete(id JobID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.jobMap, id)
	return nil
}

// Filter implements JobStore.Filter, it drops all jobs older than maxAge.
func (s *MemJobStore) Filter(maxAge time.Duration) ([]*Job, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	now := time.Now().UTC()
	var dropped []*Job
	for id, job := range s.jobMap {
		if job.Expired(now, maxAge) {
			dropped = append(dropped, job)
			delete(s.jobMap, id)
		}
	}
	return dropped, nil
}
