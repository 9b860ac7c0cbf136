package core

import (
	"sync"
	"time"

	"github.com/seckatie/videfly/internal/core/backend"
)

// Session is the transient state of one analyzer view: the live input, the
// results of the latest submission and the download flag. A session owns its
// thumbnail reference and releases it when the reference is superseded or the
// session is closed, whichever comes first.
type Session struct {
	id      string
	objects *ObjectStore

	mu          sync.Mutex
	url         string
	thumbnail   Ref
	metadata    backend.Metadata
	hasMetadata bool
	status      Status
	errMsg      string
	downloading bool
	generation  uint64
	lastUsed    time.Time
	closed      bool
}

// View is a point-in-time copy of what a session displays.
type View struct {
	SessionID   string
	URL         string
	Status      Status
	Thumbnail   Ref
	HasMetadata bool
	Metadata    backend.Metadata
	Rows        []Row
	Error       string
	Downloading bool
}

// NewSession returns an idle session whose references live in objects.
func NewSession(id string, objects *ObjectStore) *Session {
	return &Session{
		id:       id,
		objects:  objects,
		status:   StatusIdle,
		lastUsed: time.Now(),
	}
}

func (s *Session) ID() string { return s.id }

// SetURL records the live value of the URL input.
func (s *Session) SetURL(url string) {
	s.mu.Lock()
	s.url = url
	s.mu.Unlock()
}

// URL returns the live value of the URL input.
func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Snapshot returns the session's current view.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		SessionID:   s.id,
		URL:         s.url,
		Status:      s.status,
		Thumbnail:   s.thumbnail,
		HasMetadata: s.hasMetadata,
		Error:       s.errMsg,
		Downloading: s.downloading,
	}
	if s.hasMetadata {
		v.Metadata = append(backend.Metadata(nil), s.metadata...)
		v.Rows = Rows(s.metadata)
	}
	return v
}

// Close discards the session and releases its thumbnail reference. Closing
// twice is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	ref := s.thumbnail
	s.thumbnail = ""
	s.mu.Unlock()

	s.objects.Release(ref)
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// beginAnalysis clears every result of the previous submission and returns
// the generation number of the new one.
func (s *Session) beginAnalysis(url string) uint64 {
	s.mu.Lock()
	s.url = url
	old := s.thumbnail
	s.thumbnail = ""
	s.metadata = nil
	s.hasMetadata = false
	s.errMsg = ""
	s.status = StatusSubmitted
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	s.objects.Release(old)
	return gen
}

// current reports whether gen is still the latest submission of an open session.
// Callers must hold s.mu.
func (s *Session) current(gen uint64) bool {
	return !s.closed && s.generation == gen
}

// storeThumbnail makes ref the visible thumbnail. It returns false, leaving
// ref unowned, when the submission has been superseded or the session closed.
func (s *Session) storeThumbnail(gen uint64, ref Ref) bool {
	s.mu.Lock()
	if !s.current(gen) {
		s.mu.Unlock()
		return false
	}
	old := s.thumbnail
	s.thumbnail = ref
	s.mu.Unlock()

	s.objects.Release(old)
	return true
}

func (s *Session) storeMetadata(gen uint64, md backend.Metadata) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(gen) {
		return false
	}
	s.metadata = md
	s.hasMetadata = true
	s.status = StatusSuccess
	return true
}

func (s *Session) failAnalysis(gen uint64, msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(gen) {
		return false
	}
	s.errMsg = msg
	s.status = StatusFailed
	return true
}

// beginDownload sets the downloading flag and returns the URL to fetch. It
// returns false when a download is already in flight.
func (s *Session) beginDownload() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.downloading {
		return "", false
	}
	s.downloading = true
	return s.url, true
}

func (s *Session) endDownload() {
	s.mu.Lock()
	s.downloading = false
	s.mu.Unlock()
}

func (s *Session) setError(msg string) {
	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()
}
