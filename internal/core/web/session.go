package web

import (
	"net/http"

	"github.com/seckatie/videfly/internal/core"
)

// SessionCookie names the cookie that ties a browser view to its session.
const SessionCookie = "videfly_session"

// session returns the caller's session, opening one and setting the cookie
// when the request carries none or an expired one.
func (ws *Server) session(w http.ResponseWriter, r *http.Request) *core.Session {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}

	s, created := ws.sessions.GetOrCreate(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    s.ID(),
			Path:     "/",
			HttpOnly: true,
			Secure:   ws.opts.SecureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return s
}

// handleSession discards the caller's session.
func (ws *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodDelete) {
		return
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		ws.sessions.Delete(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   ws.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
