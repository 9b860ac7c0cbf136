package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/seckatie/videfly/internal/core/backend"
)

// fakeBackend records calls and answers through per-endpoint funcs.
type fakeBackend struct {
	mu        sync.Mutex
	calls     []string
	thumbnail func(url string) (backend.Payload, error)
	metadata  func(url string) (backend.Metadata, error)
	download  func(url string) (backend.Payload, error)
}

func (f *fakeBackend) record(endpoint, url string) {
	f.mu.Lock()
	f.calls = append(f.calls, endpoint+" "+url)
	f.mu.Unlock()
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) count(endpoint string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, endpoint+" ") {
			n++
		}
	}
	return n
}

func (f *fakeBackend) Thumbnail(_ context.Context, url string) (backend.Payload, error) {
	f.record("thumbnail", url)
	if f.thumbnail == nil {
		return backend.Payload{Data: []byte("img"), ContentType: "image/jpeg"}, nil
	}
	return f.thumbnail(url)
}

func (f *fakeBackend) Metadata(_ context.Context, url string) (backend.Metadata, error) {
	f.record("metadata", url)
	if f.metadata == nil {
		return fiveFields(), nil
	}
	return f.metadata(url)
}

func (f *fakeBackend) Download(_ context.Context, url string) (backend.Payload, error) {
	f.record("download", url)
	if f.download == nil {
		return backend.Payload{Data: []byte("mp4"), ContentType: "video/mp4"}, nil
	}
	return f.download(url)
}

func fiveFields() backend.Metadata {
	return backend.Metadata{
		{Name: "duration", Value: "00:02:10"},
		{Name: "resolution", Value: "1920x1080"},
		{Name: "codec", Value: "h264"},
		{Name: "bitrate", Value: "4500 kbps"},
		{Name: "frameRate", Value: "30"},
	}
}

func requestFailed(status int) error {
	return fmt.Errorf("%w: HTTP %d", backend.ErrRequestFailed, status)
}

func newTestAnalyzer(t *testing.T, fb *fakeBackend) (*Analyzer, *Session) {
	t.Helper()
	objects := NewObjectStore(time.Minute)
	return NewAnalyzer(fb, objects), NewSession("test-session", objects)
}

const videoURL = "https://example.com/v.mp4"

func TestAnalyze(t *testing.T) {
	t.Run("both requests succeed", func(t *testing.T) {
		fb := &fakeBackend{}
		a, s := newTestAnalyzer(t, fb)

		res, err := a.Analyze(context.Background(), s, videoURL)
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}

		v := s.Snapshot()
		if v.Status != StatusSuccess {
			t.Errorf("Status = %s, want success", v.Status)
		}
		if v.Error != "" {
			t.Errorf("Error = %q, want empty", v.Error)
		}
		if v.Thumbnail == "" || v.Thumbnail != res.Thumbnail {
			t.Errorf("Thumbnail = %q, result %q", v.Thumbnail, res.Thumbnail)
		}
		want := []string{"Duration", "Resolution", "Codec", "Bitrate", "FrameRate"}
		if len(v.Rows) != len(want) {
			t.Fatalf("got %d rows, want %d", len(v.Rows), len(want))
		}
		for i, row := range v.Rows {
			if row.Label != want[i] {
				t.Errorf("row %d label = %q, want %q", i, row.Label, want[i])
			}
		}
		obj, ok := a.Objects().Get(v.Thumbnail)
		if !ok || string(obj.Payload.Data) != "img" {
			t.Errorf("thumbnail object = %+v, %v", obj, ok)
		}
		calls := fb.Calls()
		if len(calls) != 2 || calls[0] != "thumbnail "+videoURL || calls[1] != "metadata "+videoURL {
			t.Errorf("calls = %v", calls)
		}
	})

	t.Run("thumbnail failure skips metadata", func(t *testing.T) {
		fb := &fakeBackend{thumbnail: func(string) (backend.Payload, error) {
			return backend.Payload{}, requestFailed(404)
		}}
		a, s := newTestAnalyzer(t, fb)

		if _, err := a.Analyze(context.Background(), s, videoURL); !errors.Is(err, backend.ErrRequestFailed) {
			t.Fatalf("expected ErrRequestFailed, got %v", err)
		}
		if n := fb.count("metadata"); n != 0 {
			t.Errorf("metadata requested %d times, want 0", n)
		}
		v := s.Snapshot()
		if v.Thumbnail != "" || v.HasMetadata {
			t.Errorf("expected no results, got %+v", v)
		}
		if v.Error != AnalyzeErrorMessage || v.Status != StatusFailed {
			t.Errorf("Error = %q Status = %s", v.Error, v.Status)
		}
		if a.Objects().Len() != 0 {
			t.Errorf("expected no live objects, got %d", a.Objects().Len())
		}
	})

	t.Run("metadata failure keeps thumbnail", func(t *testing.T) {
		fb := &fakeBackend{metadata: func(string) (backend.Metadata, error) {
			return nil, requestFailed(500)
		}}
		a, s := newTestAnalyzer(t, fb)

		if _, err := a.Analyze(context.Background(), s, videoURL); err == nil {
			t.Fatal("expected error")
		}
		v := s.Snapshot()
		if v.Thumbnail == "" {
			t.Error("expected thumbnail to remain visible")
		}
		if v.HasMetadata || len(v.Rows) != 0 {
			t.Errorf("expected no metadata rows, got %v", v.Rows)
		}
		if v.Error != AnalyzeErrorMessage {
			t.Errorf("Error = %q", v.Error)
		}
	})

	t.Run("unknown fields are rendered", func(t *testing.T) {
		fb := &fakeBackend{metadata: func(string) (backend.Metadata, error) {
			return append(fiveFields(), backend.Field{Name: "chapterCount", Value: "12"}), nil
		}}
		a, s := newTestAnalyzer(t, fb)

		if _, err := a.Analyze(context.Background(), s, videoURL); err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		rows := s.Snapshot().Rows
		last := rows[len(rows)-1]
		if last.Label != "ChapterCount" || last.Value != "12" {
			t.Errorf("last row = %+v", last)
		}
	})

	t.Run("empty metadata record still counts as present", func(t *testing.T) {
		fb := &fakeBackend{metadata: func(string) (backend.Metadata, error) {
			return backend.Metadata{}, nil
		}}
		a, s := newTestAnalyzer(t, fb)

		if _, err := a.Analyze(context.Background(), s, videoURL); err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if v := s.Snapshot(); !v.HasMetadata || len(v.Rows) != 0 {
			t.Errorf("HasMetadata = %v rows = %v", v.HasMetadata, v.Rows)
		}
	})
}

func TestAnalyzeErrorUniformity(t *testing.T) {
	causes := map[string]*fakeBackend{
		"thumbnail 404": {thumbnail: func(string) (backend.Payload, error) { return backend.Payload{}, requestFailed(404) }},
		"thumbnail 500": {thumbnail: func(string) (backend.Payload, error) { return backend.Payload{}, requestFailed(500) }},
		"thumbnail network": {thumbnail: func(string) (backend.Payload, error) {
			return backend.Payload{}, fmt.Errorf("%w: dial tcp: connection refused", backend.ErrRequestFailed)
		}},
		"metadata 400":  {metadata: func(string) (backend.Metadata, error) { return nil, requestFailed(400) }},
		"metadata json": {metadata: func(string) (backend.Metadata, error) { return nil, errors.New("bad json") }},
	}

	for name, fb := range causes {
		t.Run(name, func(t *testing.T) {
			a, s := newTestAnalyzer(t, fb)
			a.Analyze(context.Background(), s, videoURL)
			if got := s.Snapshot().Error; got != AnalyzeErrorMessage {
				t.Errorf("Error = %q, want %q", got, AnalyzeErrorMessage)
			}
		})
	}
}

func TestAnalyzeClearsBeforeRequestsResolve(t *testing.T) {
	fb := &fakeBackend{}
	a, s := newTestAnalyzer(t, fb)

	if _, err := a.Analyze(context.Background(), s, videoURL); err != nil {
		t.Fatalf("first Analyze() error = %v", err)
	}
	s.setError("stale")
	first := s.Snapshot().Thumbnail

	entered := make(chan struct{})
	unblock := make(chan struct{})
	fb.thumbnail = func(string) (backend.Payload, error) {
		close(entered)
		<-unblock
		return backend.Payload{Data: []byte("img2")}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Analyze(context.Background(), s, "https://example.com/other.mp4")
	}()

	<-entered
	v := s.Snapshot()
	if v.Thumbnail != "" || v.HasMetadata || v.Error != "" {
		t.Errorf("expected cleared state while in flight, got %+v", v)
	}
	if v.Status != StatusSubmitted {
		t.Errorf("Status = %s, want submitted", v.Status)
	}
	if _, ok := a.Objects().Get(first); ok {
		t.Error("expected previous thumbnail to be released")
	}

	close(unblock)
	<-done
	if v := s.Snapshot(); v.Status != StatusSuccess {
		t.Errorf("Status = %s, want success", v.Status)
	}
}

func TestThumbnailReleasedExactlyOnce(t *testing.T) {
	fb := &fakeBackend{}
	a, s := newTestAnalyzer(t, fb)

	var mu sync.Mutex
	released := map[Ref]int{}
	a.RegisterEventListener(OnReferenceReleasedEvent, func(event Event) error {
		mu.Lock()
		released[event.(ReferenceReleasedEvent).Ref]++
		mu.Unlock()
		return nil
	})

	var refs []Ref
	for i := 0; i < 3; i++ {
		res, err := a.Analyze(context.Background(), s, videoURL)
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		refs = append(refs, res.Thumbnail)
	}
	s.Close()
	s.Close()

	for _, ref := range refs {
		if released[ref] != 1 {
			t.Errorf("ref %s released %d times, want 1", ref, released[ref])
		}
	}
	if a.Objects().Len() != 0 {
		t.Errorf("expected no live objects, got %d", a.Objects().Len())
	}
}

func TestSupersededAnalysisDoesNotWrite(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	fb := &fakeBackend{thumbnail: func(url string) (backend.Payload, error) {
		if url == "https://example.com/slow.mp4" {
			close(entered)
			<-unblock
			return backend.Payload{Data: []byte("slow")}, nil
		}
		return backend.Payload{Data: []byte("fast")}, nil
	}}
	a, s := newTestAnalyzer(t, fb)

	errCh := make(chan error, 1)
	go func() {
		_, err := a.Analyze(context.Background(), s, "https://example.com/slow.mp4")
		errCh <- err
	}()
	<-entered

	res, err := a.Analyze(context.Background(), s, "https://example.com/fast.mp4")
	if err != nil {
		t.Fatalf("second Analyze() error = %v", err)
	}
	close(unblock)

	if err := <-errCh; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	v := s.Snapshot()
	if v.Thumbnail != res.Thumbnail {
		t.Errorf("Thumbnail = %q, want %q", v.Thumbnail, res.Thumbnail)
	}
	if a.Objects().Len() != 1 {
		t.Errorf("expected only the current thumbnail to be live, got %d", a.Objects().Len())
	}
	if n := fb.count("metadata"); n != 1 {
		t.Errorf("metadata requested %d times, want 1", n)
	}
}

func TestAnalyzeAfterCloseReleasesArtifact(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	fb := &fakeBackend{thumbnail: func(string) (backend.Payload, error) {
		close(entered)
		<-unblock
		return backend.Payload{Data: []byte("img")}, nil
	}}
	a, s := newTestAnalyzer(t, fb)

	errCh := make(chan error, 1)
	go func() {
		_, err := a.Analyze(context.Background(), s, videoURL)
		errCh <- err
	}()
	<-entered
	s.Close()
	close(unblock)

	if err := <-errCh; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if a.Objects().Len() != 0 {
		t.Errorf("expected no live objects, got %d", a.Objects().Len())
	}
}

func TestDownload(t *testing.T) {
	t.Run("success stores a transient object", func(t *testing.T) {
		fb := &fakeBackend{}
		a, s := newTestAnalyzer(t, fb)
		s.SetURL(videoURL)

		ref, err := a.Download(context.Background(), s)
		if err != nil {
			t.Fatalf("Download() error = %v", err)
		}
		obj, ok := a.Objects().Get(ref)
		if !ok {
			t.Fatal("expected object for ref")
		}
		if obj.Filename != DownloadFilename || !obj.Transient {
			t.Errorf("object = %+v", obj)
		}
		if s.Snapshot().Downloading {
			t.Error("Downloading should be false after success")
		}
	})

	t.Run("failure sets error and resets flag", func(t *testing.T) {
		fb := &fakeBackend{download: func(string) (backend.Payload, error) {
			return backend.Payload{}, requestFailed(502)
		}}
		a, s := newTestAnalyzer(t, fb)
		s.SetURL(videoURL)

		if _, err := a.Download(context.Background(), s); err == nil {
			t.Fatal("expected error")
		}
		v := s.Snapshot()
		if v.Downloading {
			t.Error("Downloading should be false after failure")
		}
		if v.Error != DownloadErrorMessage {
			t.Errorf("Error = %q, want %q", v.Error, DownloadErrorMessage)
		}
	})

	t.Run("uses the live input value", func(t *testing.T) {
		fb := &fakeBackend{}
		a, s := newTestAnalyzer(t, fb)

		if _, err := a.Analyze(context.Background(), s, videoURL); err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		s.SetURL("https://example.com/edited.mp4")
		if _, err := a.Download(context.Background(), s); err != nil {
			t.Fatalf("Download() error = %v", err)
		}
		calls := fb.Calls()
		if last := calls[len(calls)-1]; last != "download https://example.com/edited.mp4" {
			t.Errorf("last call = %q", last)
		}
	})

	t.Run("concurrent call is a no-op", func(t *testing.T) {
		entered := make(chan struct{})
		unblock := make(chan struct{})
		fb := &fakeBackend{download: func(string) (backend.Payload, error) {
			close(entered)
			<-unblock
			return backend.Payload{Data: []byte("mp4")}, nil
		}}
		a, s := newTestAnalyzer(t, fb)
		s.SetURL(videoURL)

		var transitions []string
		a.RegisterEventListener(OnDownloadStartedEvent, func(Event) error {
			transitions = append(transitions, "start")
			return nil
		})
		a.RegisterEventListener(OnDownloadFinishedEvent, func(Event) error {
			transitions = append(transitions, "finish")
			return nil
		})

		errCh := make(chan error, 1)
		go func() {
			_, err := a.Download(context.Background(), s)
			errCh <- err
		}()
		<-entered

		if !s.Snapshot().Downloading {
			t.Error("Downloading should be true while in flight")
		}
		if _, err := a.Download(context.Background(), s); !errors.Is(err, ErrDownloadInProgress) {
			t.Errorf("expected ErrDownloadInProgress, got %v", err)
		}

		close(unblock)
		if err := <-errCh; err != nil {
			t.Fatalf("first Download() error = %v", err)
		}
		if n := fb.count("download"); n != 1 {
			t.Errorf("download requested %d times, want 1", n)
		}
		if strings.Join(transitions, ",") != "start,finish" {
			t.Errorf("transitions = %v", transitions)
		}
		if s.Snapshot().Downloading {
			t.Error("Downloading should be false after settle")
		}
	})
}
