package core

import (
	"log"
	"sync"
)

// ------------------------------
// Event System
// ------------------------------
//
// The analyzer emits typed events as a session moves through an analysis or
// a download, and whenever an object reference is released. Register
// listeners to react to these changes.
//
// Example usage:
//
//	analyzer.RegisterEventListener(core.OnAnalysisFailedEvent, func(event core.Event) error {
//	    ev := event.(core.AnalysisFailedEvent)
//	    log.Printf("Analysis of %s failed: %v", ev.URL, ev.Err)
//	    return nil
//	})
//
// Event is the common interface for all analyzer events.
type Event interface {
	Kind() EventKind
}

// EventKind represents all the kinds of events that can be emitted.
type EventKind int

const (
	// OnAnalysisStartedEvent is emitted after prior results were cleared for a new submission.
	OnAnalysisStartedEvent EventKind = iota
	// OnThumbnailStoredEvent is emitted when a thumbnail reference becomes visible.
	OnThumbnailStoredEvent
	// OnMetadataStoredEvent is emitted when a metadata record becomes visible.
	OnMetadataStoredEvent
	// OnAnalysisFailedEvent is emitted when either analysis request fails.
	OnAnalysisFailedEvent
	// OnDownloadStartedEvent is emitted when a download passes the re-entrancy guard.
	OnDownloadStartedEvent
	// OnDownloadFinishedEvent is emitted when a download settles, successfully or not.
	OnDownloadFinishedEvent
	// OnReferenceReleasedEvent is emitted exactly once per released object reference.
	OnReferenceReleasedEvent
)

func (k EventKind) String() string {
	switch k {
	case OnAnalysisStartedEvent:
		return "analysis_started"
	case OnThumbnailStoredEvent:
		return "thumbnail_stored"
	case OnMetadataStoredEvent:
		return "metadata_stored"
	case OnAnalysisFailedEvent:
		return "analysis_failed"
	case OnDownloadStartedEvent:
		return "download_started"
	case OnDownloadFinishedEvent:
		return "download_finished"
	case OnReferenceReleasedEvent:
		return "reference_released"
	default:
		return "unknown"
	}
}

// AnalysisStartedEvent is emitted once a submission has cleared the previous results.
type AnalysisStartedEvent struct {
	SessionID string
	URL       string
}

func (e AnalysisStartedEvent) Kind() EventKind { return OnAnalysisStartedEvent }

// ThumbnailStoredEvent is emitted after a thumbnail artifact is stored on a session.
type ThumbnailStoredEvent struct {
	SessionID string
	Ref       Ref
}

func (e ThumbnailStoredEvent) Kind() EventKind { return OnThumbnailStoredEvent }

// MetadataStoredEvent is emitted after a metadata record is stored on a session.
type MetadataStoredEvent struct {
	SessionID string
	Fields    int
}

func (e MetadataStoredEvent) Kind() EventKind { return OnMetadataStoredEvent }

// AnalysisFailedEvent carries the underlying failure, which is never shown to users.
type AnalysisFailedEvent struct {
	SessionID string
	URL       string
	Err       error
}

func (e AnalysisFailedEvent) Kind() EventKind { return OnAnalysisFailedEvent }

// DownloadStartedEvent is emitted when a download request is issued.
type DownloadStartedEvent struct {
	SessionID string
	URL       string
}

func (e DownloadStartedEvent) Kind() EventKind { return OnDownloadStartedEvent }

// DownloadFinishedEvent is emitted when a download settles. Err is nil on success.
type DownloadFinishedEvent struct {
	SessionID string
	Ref       Ref
	Err       error
}

func (e DownloadFinishedEvent) Kind() EventKind { return OnDownloadFinishedEvent }

// ReferenceReleasedEvent is emitted after an object reference is released.
type ReferenceReleasedEvent struct {
	Ref Ref
}

func (e ReferenceReleasedEvent) Kind() EventKind { return OnReferenceReleasedEvent }

// EventListener is a callback that handles events of a specific kind.
type EventListener func(event Event) error

type events struct {
	mu        sync.RWMutex
	listeners map[EventKind][]EventListener
}

func newEvents() *events {
	return &events{listeners: make(map[EventKind][]EventListener)}
}

func (e *events) register(kind EventKind, listener EventListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[kind] = append(e.listeners[kind], listener)
}

// emit dispatches an event to all registered listeners for that event kind.
// Listeners are called synchronously in registration order.
func (e *events) emit(event Event) {
	if e == nil {
		return
	}
	e.mu.RLock()
	listeners := e.listeners[event.Kind()]
	e.mu.RUnlock()
	for _, listener := range listeners {
		if err := listener(event); err != nil {
			log.Printf("Event listener error for %s: %v", event.Kind(), err)
		}
	}
}
