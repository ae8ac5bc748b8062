// Package web serves the dashboard: login, watches, and the latest slot
// snapshots.
package web

import (
	"context"
	"embed"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/laundry-scheduler/internal/auth"
	"github.com/example/laundry-scheduler/internal/store"
)

//go:embed templates/*.html static/*
var fs embed.FS

type Server struct {
	Auth    *auth.Store
	Watches *store.Watches
	Slots   *store.Slots

	BaseURL string
}

type tmplData struct {
	Title string
	User  int64

	Flash   string
	Watches []store.Watch
	Slots   []store.StoredSlot
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/static/", http.FileServer(http.FS(fs)))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.Handle("/", s.Auth.RequireAuth(http.HandlerFunc(s.handleHome)))
	mux.Handle("/watches/new", s.Auth.RequireAuth(http.HandlerFunc(s.handleWatchNew)))
	mux.Handle("/watches/create", s.Auth.RequireAuth(http.HandlerFunc(s.handleWatchCreate)))
	mux.Handle("/slots", s.Auth.RequireAuth(http.HandlerFunc(s.handleSlots)))

	return mux
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	ws, err := s.Watches.ListByUser(r.Context(), uid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, "templates/watches.html", tmplData{
		Title:   "Watches",
		User:    uid,
		Watches: ws,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, "templates/login.html", tmplData{Title: "Login"})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		username := strings.TrimSpace(r.FormValue("username"))
		password := r.FormValue("password")
		id, err := s.Auth.Authenticate(r.Context(), username, password)
		if err != nil {
			s.render(w, "templates/login.html", tmplData{Title: "Login", Flash: "Invalid username/password"})
			return
		}
		if err := s.Auth.SetSession(w, r, id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleWatchNew(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	s.render(w, "templates/new_watch.html", tmplData{Title: "New watch", User: uid})
}

func (s *Server) handleWatchCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	weekday, err := strconv.Atoi(r.FormValue("weekday"))
	if err != nil {
		http.Error(w, "invalid weekday", http.StatusBadRequest)
		return
	}
	interval, err := strconv.Atoi(r.FormValue("interval_seconds"))
	if err != nil || interval < 1 {
		interval = 300
	}

	watch := store.Watch{
		UserID:         uid,
		Name:           strings.TrimSpace(r.FormValue("name")),
		Weekday:        weekday,
		PreferredTimes: splitCSV(r.FormValue("preferred_times")),
		IntervalSec:    interval,
	}
	if err := watch.Validate(); err != nil {
		s.render(w, "templates/new_watch.html", tmplData{Title: "New watch", User: uid, Flash: err.Error()})
		return
	}
	if _, err := s.Watches.Create(r.Context(), watch); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	slots, err := s.Slots.Upcoming(r.Context(), 100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, "templates/slots.html", tmplData{Title: "Slots", User: uid, Slots: slots})
}

func (s *Server) render(w http.ResponseWriter, page string, data tmplData) {
	t, err := template.ParseFS(fs, page)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.Execute(w, data); err != nil {
		log.Printf("web: render %s: %v", page, err)
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Start runs the HTTP server until ctx is cancelled, then drains it.
func Start(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
