package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"nordbot/internal/domain"
	"nordbot/internal/service"
	"nordbot/internal/session"
)

// SessionCookie is the cookie carrying the browser's session id.
const SessionCookie = "nordbot_session"

//go:embed templates/page.html
var templateFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templateFS, "templates/page.html"))

// Asker answers one question within a session.
type Asker interface {
	Ask(ctx context.Context, sess *session.Session, question string) (string, error)
}

// Server serves the single-page chat UI, a health probe and metrics.
type Server struct {
	asker    Asker
	store    *session.Store
	gatherer prometheus.Gatherer
	log      *zap.Logger
}

func NewServer(asker Asker, store *session.Store, gatherer prometheus.Gatherer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{asker: asker, store: store, gatherer: gatherer, log: log}
}

type pageData struct {
	Transcript []domain.TranscriptEntry
	Input      string
	Error      string
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/", s.handleIndex)
	r.Post("/ask", s.handleAsk)
	r.Post("/reset", s.handleReset)
	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	s.render(w, r, sess, "")
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	q := strings.TrimSpace(r.PostFormValue("question"))
	if q == "" {
		s.render(w, r, sess, "")
		return
	}

	sess.SetInput(q)
	if _, err := s.asker.Ask(r.Context(), sess, q); err != nil {
		s.log.Warn("ask failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("session", sess.ID),
			zap.Error(err),
		)
		s.render(w, r, sess, service.FormatError(err))
		return
	}
	sess.SetInput("")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	sess.Reset()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, sess *session.Session, errText string) {
	data := pageData{
		Transcript: sess.Transcript(),
		Input:      sess.Input(),
		Error:      errText,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTmpl.Execute(w, data); err != nil {
		s.log.Error("render page", zap.String("request_id", middleware.GetReqID(r.Context())), zap.Error(err))
	}
}

// session resolves the caller's session from its cookie, issuing a new one
// when the cookie is missing or stale.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	sess, created := s.store.Get(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

// SweepSessions drops idle sessions every interval until ctx is done.
func SweepSessions(ctx context.Context, store *session.Store, ttl, interval time.Duration, log *zap.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := store.Sweep(ttl); n > 0 {
				log.Debug("idle sessions dropped", zap.Int("count", n), zap.Int("live", store.Len()))
			}
		}
	}
}
