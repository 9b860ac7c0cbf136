package core

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/seckatie/videfly/internal/core/backend"
)

// ErrObjectNotFound is returned when a reference is unknown or already released.
var ErrObjectNotFound = errors.New("object not found")

// Ref is a revocable handle to an in-memory object. It resolves through the
// web server's /objects/{ref} route until it is released.
type Ref string

// Object is binary data made addressable by a Ref.
type Object struct {
	Ref       Ref
	Payload   backend.Payload
	Filename  string
	Transient bool
	CreatedAt time.Time
}

// ObjectOptions describes how a stored object is resolved.
type ObjectOptions struct {
	// Filename, when set, is offered as the save-as name.
	Filename string
	// Transient objects resolve at most once: Take releases them.
	Transient bool
}

// ObjectStore holds the objects behind live references.
type ObjectStore struct {
	mu           sync.Mutex
	objects      map[Ref]*Object
	transientTTL time.Duration
	now          func() time.Time
	events       *events
}

// NewObjectStore returns an empty store. Transient objects that are never
// taken are dropped by Sweep once they are older than transientTTL.
func NewObjectStore(transientTTL time.Duration) *ObjectStore {
	if transientTTL <= 0 {
		transientTTL = DefaultTransientTTL
	}
	return &ObjectStore{
		objects:      make(map[Ref]*Object),
		transientTTL: transientTTL,
		now:          time.Now,
		events:       newEvents(),
	}
}

// Put stores a payload and returns a fresh reference to it.
func (s *ObjectStore) Put(p backend.Payload, opts ObjectOptions) Ref {
	ref := Ref(uuid.NewString())
	s.mu.Lock()
	s.objects[ref] = &Object{
		Ref:       ref,
		Payload:   p,
		Filename:  opts.Filename,
		Transient: opts.Transient,
		CreatedAt: s.now(),
	}
	s.mu.Unlock()
	return ref
}

// Get resolves a reference without releasing it.
func (s *ObjectStore) Get(ref Ref) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[ref]
	if !ok {
		return Object{}, false
	}
	return *obj, true
}

// Take resolves a reference and releases it in the same step. Any later
// lookup of the reference misses.
func (s *ObjectStore) Take(ref Ref) (Object, bool) {
	s.mu.Lock()
	obj, ok := s.objects[ref]
	if ok {
		delete(s.objects, ref)
	}
	s.mu.Unlock()
	if !ok {
		return Object{}, false
	}
	s.events.emit(ReferenceReleasedEvent{Ref: ref})
	return *obj, true
}

// Release drops the object behind ref. It reports true only for the call
// that actually released it.
func (s *ObjectStore) Release(ref Ref) bool {
	if ref == "" {
		return false
	}
	s.mu.Lock()
	_, ok := s.objects[ref]
	if ok {
		delete(s.objects, ref)
	}
	s.mu.Unlock()
	if ok {
		s.events.emit(ReferenceReleasedEvent{Ref: ref})
	}
	return ok
}

// Sweep releases transient objects older than the transient TTL and returns
// how many were dropped.
func (s *ObjectStore) Sweep() int {
	cutoff := s.now().Add(-s.transientTTL)

	s.mu.Lock()
	var expired []Ref
	for ref, obj := range s.objects {
		if obj.Transient && obj.CreatedAt.Before(cutoff) {
			delete(s.objects, ref)
			expired = append(expired, ref)
		}
	}
	s.mu.Unlock()

	for _, ref := range expired {
		s.events.emit(ReferenceReleasedEvent{Ref: ref})
	}
	return len(expired)
}

// Len returns the number of live references.
func (s *ObjectStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
