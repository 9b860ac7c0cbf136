package web

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/seckatie/videfly/internal/core"
)

func (ws *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	s := ws.session(w, r)
	ws.renderTemplate(w, "index.html", newPageView(s.Snapshot()))
}

// handleURL records the live value of the URL input.
func (ws *Server) handleURL(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s := ws.session(w, r)
	s.SetURL(r.FormValue("url"))
	w.WriteHeader(http.StatusNoContent)
}

func (ws *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s := ws.session(w, r)
	url := r.FormValue("url")

	// Failures are already recorded on the session as the generic message.
	if _, err := ws.analyzer.Analyze(r.Context(), s, url); err != nil && !errors.Is(err, core.ErrSuperseded) {
		log.Printf("Analyze request for session %s did not complete: %v", s.ID(), err)
	}

	// For HTMX requests, return the results fragment directly so the page can swap
	// cleanly without a redirect.
	if isHTMX(r) {
		ws.renderTemplate(w, "results.html", newPageView(s.Snapshot()))
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (ws *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s := ws.session(w, r)
	// The download button submits the live input value when the page can send it.
	if err := r.ParseForm(); err == nil {
		if vals, ok := r.PostForm["url"]; ok && len(vals) > 0 {
			s.SetURL(vals[0])
		}
	}

	ref, err := ws.analyzer.Download(r.Context(), s)
	switch {
	case errors.Is(err, core.ErrDownloadInProgress):
		if isHTMX(r) {
			// No swap: the button of the running download stays as it is.
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.Error(w, "Download already in progress", http.StatusConflict)
		return
	case err != nil:
		if isHTMX(r) {
			ws.renderTemplate(w, "results.html", newPageView(s.Snapshot()))
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", objectURL(ref))
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, objectURL(ref), http.StatusSeeOther)
}

// handleObject serves the bytes behind a reference. Transient objects are
// released by the first successful fetch.
func (ws *Server) handleObject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	ref := core.Ref(strings.TrimPrefix(r.URL.Path, "/objects/"))
	if ref == "" || strings.Contains(string(ref), "/") {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	objects := ws.analyzer.Objects()
	obj, ok := objects.Get(ref)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if obj.Transient {
		if r.Method == http.MethodHead {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		if obj, ok = objects.Take(ref); !ok {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
	}

	h := w.Header()
	contentType := obj.Payload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(obj.Payload.Data)))
	h.Set("Cache-Control", "private, no-store")
	h.Set("X-Content-Type-Options", "nosniff")
	if obj.Filename != "" {
		h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", obj.Filename))
	}

	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(obj.Payload.Data); err != nil {
		log.Printf("Failed to write object %s: %v", ref, err)
	}
}
