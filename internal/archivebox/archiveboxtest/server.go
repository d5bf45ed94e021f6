// Package archiveboxtest provides an in-process fake ArchiveBox for tests.
package archiveboxtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// Credentials accepted by the fake login view
const (
	Username = "archivist"
	Password = "hunter2"
	CSRF     = "csrf-token-123"
)

// Server is a fake ArchiveBox admin. Change its exported fields through
// Configure.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	// BasicUser and BasicPass, when set, are required on every request
	BasicUser string
	BasicPass string

	// OmitCSRF drops the csrftoken cookie from the login form response
	OmitCSRF bool
	// OmitSession drops the sessionid cookie from the login response
	OmitSession bool
	// AddDelay stalls the add view, for timeout tests
	AddDelay time.Duration
	// AddStatus overrides the add view status when non-zero
	AddStatus int

	sessions   map[string]bool
	nextID     int
	logins     int
	loginForms int
	batches    [][]string
	lastLogin  http.Header
	lastForm   map[string]string
}

// NewServer starts a fake ArchiveBox. Close it when done.
func NewServer() *Server {
	s := &Server{sessions: make(map[string]bool)}
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/login", s.handleLoginForm)
	mux.HandleFunc("/admin/login/", s.handleLogin)
	mux.HandleFunc("/add/", s.handleAdd)
	s.Server = httptest.NewServer(s.basicAuth(mux))
	return s
}

// Configure applies fn while holding the server lock
func (s *Server) Configure(fn func(s *Server)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// ExpireSessions forgets every issued session
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]bool)
}

// Logins returns the number of successful login POSTs
func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// LoginForms returns the number of login form GETs
func (s *Server) LoginForms() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginForms
}

// Batches returns every URL list accepted by the add view, in order
func (s *Server) Batches() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.batches))
	copy(out, s.batches)
	return out
}

// LastLoginHeaders returns the headers of the most recent login POST
func (s *Server) LastLoginHeaders() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLogin.Clone()
}

// LastAddForm returns the form fields of the most recent add request
func (s *Server) LastAddForm() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.lastForm))
	for k, v := range s.lastForm {
		out[k] = v
	}
	return out
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		user, pass := s.BasicUser, s.BasicPass
		s.mu.Unlock()
		if user != "" {
			u, p, ok := r.BasicAuth()
			if !ok || u != user || p != pass {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	s.loginForms++
	omit := s.OmitCSRF
	s.mu.Unlock()

	w.Header().Add("Set-Cookie", "messages=; Path=/")
	if !omit {
		w.Header().Add("Set-Cookie", "csrftoken="+CSRF+"; expires=Thu, 01 Jan 2099 00:00:00 GMT; Max-Age=31449600; Path=/; SameSite=Lax")
	}
	_, _ = fmt.Fprint(w, "<form>login</form>")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLogin = r.Header.Clone()

	if r.PostForm.Get("csrfmiddlewaretoken") != CSRF || !strings.Contains(r.Header.Get("Cookie"), "csrftoken="+CSRF) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if r.PostForm.Get("username") != Username || r.PostForm.Get("password") != Password {
		// Django re-renders the form with an error
		_, _ = fmt.Fprint(w, "<form>invalid</form>")
		return
	}

	s.logins++
	if !s.OmitSession {
		s.nextID++
		id := fmt.Sprintf("session-%d", s.nextID)
		s.sessions[id] = true
		w.Header().Add("Set-Cookie", "sessionid="+id+"; expires=Thu, 01 Jan 2099 00:00:00 GMT; HttpOnly; Path=/")
	}
	w.Header().Set("Location", r.PostForm.Get("next"))
	w.WriteHeader(http.StatusFound)
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	delay := s.AddDelay
	s.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastForm = map[string]string{}
	for k := range r.PostForm {
		s.lastForm[k] = r.PostForm.Get(k)
	}

	id := strings.TrimPrefix(r.Header.Get("Cookie"), "sessionid=")
	if !s.sessions[id] {
		w.Header().Set("Location", "/admin/login/?next=/add/")
		w.WriteHeader(http.StatusFound)
		return
	}
	if s.AddStatus != 0 {
		w.WriteHeader(s.AddStatus)
		return
	}

	s.batches = append(s.batches, strings.Split(r.PostForm.Get("url"), "\n"))
	_, _ = fmt.Fprint(w, "<p>Added</p>")
}
