package core

import (
	"context"
	"errors"
	"log"

	"github.com/seckatie/videfly/internal/core/backend"
)

var (
	// ErrDownloadInProgress is returned when a session already has a download in flight.
	ErrDownloadInProgress = errors.New("download already in progress")
	// ErrSuperseded is returned when a newer submission or a closed session
	// made the results of an analysis irrelevant.
	ErrSuperseded = errors.New("analysis superseded")
)

// Backend is the analysis service the analyzer talks to.
type Backend interface {
	Thumbnail(ctx context.Context, videoURL string) (backend.Payload, error)
	Metadata(ctx context.Context, videoURL string) (backend.Metadata, error)
	Download(ctx context.Context, videoURL string) (backend.Payload, error)
}

// Result is what a successful analysis made visible.
type Result struct {
	Thumbnail Ref
	Metadata  backend.Metadata
}

// Analyzer sequences backend calls on behalf of sessions.
type Analyzer struct {
	backend Backend
	objects *ObjectStore
}

// NewAnalyzer returns an Analyzer that stores fetched artifacts in objects.
func NewAnalyzer(b Backend, objects *ObjectStore) *Analyzer {
	return &Analyzer{backend: b, objects: objects}
}

// Objects returns the store behind the analyzer's references.
func (a *Analyzer) Objects() *ObjectStore {
	return a.objects
}

// RegisterEventListener adds a listener for a specific event kind.
func (a *Analyzer) RegisterEventListener(kind EventKind, listener EventListener) {
	a.objects.events.register(kind, listener)
}

// Analyze fetches the thumbnail and then the metadata of url for session s.
//
// Previous results are cleared before any request is issued. The metadata
// request is only issued once the thumbnail request succeeded. Any failure
// sets the session's error to AnalyzeErrorMessage; a thumbnail stored before
// a metadata failure stays visible.
func (a *Analyzer) Analyze(ctx context.Context, s *Session, url string) (Result, error) {
	gen := s.beginAnalysis(url)
	a.objects.events.emit(AnalysisStartedEvent{SessionID: s.id, URL: url})

	thumb, err := a.backend.Thumbnail(ctx, url)
	if err != nil {
		a.fail(s, gen, url, err)
		return Result{}, err
	}

	ref := a.objects.Put(thumb, ObjectOptions{})
	if !s.storeThumbnail(gen, ref) {
		a.objects.Release(ref)
		return Result{}, ErrSuperseded
	}
	a.objects.events.emit(ThumbnailStoredEvent{SessionID: s.id, Ref: ref})

	md, err := a.backend.Metadata(ctx, url)
	if err != nil {
		a.fail(s, gen, url, err)
		return Result{}, err
	}

	if !s.storeMetadata(gen, md) {
		return Result{}, ErrSuperseded
	}
	a.objects.events.emit(MetadataStoredEvent{SessionID: s.id, Fields: len(md)})

	return Result{Thumbnail: ref, Metadata: md}, nil
}

func (a *Analyzer) fail(s *Session, gen uint64, url string, err error) {
	log.Printf("Analysis failed for session %s url=%s: %v", s.id, url, err)
	if s.failAnalysis(gen, AnalyzeErrorMessage) {
		a.objects.events.emit(AnalysisFailedEvent{SessionID: s.id, URL: url, Err: err})
	}
}

// Download fetches the full video for the session's current URL and stores it
// as a transient object named DownloadFilename. The returned reference
// resolves exactly once.
//
// A call made while another download of the same session is in flight
// returns ErrDownloadInProgress without contacting the backend.
func (a *Analyzer) Download(ctx context.Context, s *Session) (Ref, error) {
	url, ok := s.beginDownload()
	if !ok {
		return "", ErrDownloadInProgress
	}
	defer s.endDownload()

	a.objects.events.emit(DownloadStartedEvent{SessionID: s.id, URL: url})

	payload, err := a.backend.Download(ctx, url)
	if err != nil {
		log.Printf("Download failed for session %s url=%s: %v", s.id, url, err)
		s.setError(DownloadErrorMessage)
		a.objects.events.emit(DownloadFinishedEvent{SessionID: s.id, Err: err})
		return "", err
	}

	ref := a.objects.Put(payload, ObjectOptions{Filename: DownloadFilename, Transient: true})
	a.objects.events.emit(DownloadFinishedEvent{SessionID: s.id, Ref: ref})
	return ref, nil
}
