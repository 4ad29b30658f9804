package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"study-assistant/internal/catalog"
	"study-assistant/internal/models"
	"study-assistant/internal/parser"
)

const (
	sessionCookie = "study_session"
	uploadNotice  = "Please upload a document first to start chatting!"
)

//go:embed templates/index.html
var templateFS embed.FS

// Pipeline is what the web front end needs from the RAG service.
type Pipeline interface {
	SplitText(text string) []string
	ChunkAndIndex(ctx context.Context, text, sourceID string) (models.IndexHandle, error)
	Query(ctx context.Context, handle models.IndexHandle, question string, k int) (*models.PromptResponse, error)
}

// Recorder persists ingestions; the catalog satisfies it.
type Recorder interface {
	Save(ing catalog.Ingestion) error
}

type session struct {
	Handle   models.IndexHandle
	Name     string
	Messages []models.ConversationMessage
	Notice   string
	Success  string
}

// Server keeps one index handle and transcript per browser session.
type Server struct {
	pipeline  Pipeline
	recorder  Recorder
	store     string
	topK      int
	maxUpload int64
	page      *template.Template

	mu       sync.Mutex
	sessions map[string]*session
}

type Option func(*Server)

func WithRecorder(r Recorder, store string) Option {
	return func(s *Server) {
		s.recorder = r
		s.store = store
	}
}

func WithTopK(k int) Option {
	return func(s *Server) { s.topK = k }
}

// WithMaxUploadMB bounds the size of an uploaded document.
func WithMaxUploadMB(mb int64) Option {
	return func(s *Server) {
		if mb > 0 {
			s.maxUpload = mb << 20
		}
	}
}

func NewServer(pipeline Pipeline, opts ...Option) *Server {
	s := &Server{
		pipeline:  pipeline,
		maxUpload: 10 << 20,
		page:      template.Must(template.ParseFS(templateFS, "templates/index.html")),
		sessions:  make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.HandleIndex)
	mux.HandleFunc("POST /upload", s.HandleUpload)
	mux.HandleFunc("POST /ask", s.HandleAsk)
	mux.HandleFunc("POST /reset", s.HandleReset)
	return mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Web UI listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type pageData struct {
	Name     string
	Ready    bool
	Messages []models.ConversationMessage
	Notice   string
	Success  string
	Accept   string
}

func (s *Server) HandleIndex(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)

	s.mu.Lock()
	sess := s.session(id)
	data := pageData{
		Name:     sess.Name,
		Ready:    !sess.Handle.IsZero(),
		Messages: append([]models.ConversationMessage(nil), sess.Messages...),
		Notice:   sess.Notice,
		Success:  sess.Success,
		Accept:   strings.Join(parser.SupportedExtensions, ","),
	}
	sess.Notice, sess.Success = "", ""
	s.mu.Unlock()

	if !data.Ready && data.Notice == "" {
		data.Notice = uploadNotice
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("Failed to render page")
	}
}

func (s *Server) HandleUpload(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	defer http.Redirect(w, r, "/", http.StatusSeeOther)

	name, handle, chunks, err := s.ingest(w, r)
	if err != nil {
		log.Error().Err(err).Str("session", id).Msg("Upload failed")
		s.update(id, func(sess *session) { sess.Notice = "Error processing file: " + err.Error() })
		return
	}

	s.update(id, func(sess *session) {
		sess.Handle = handle
		sess.Name = name
		sess.Messages = nil
		sess.Success = "File uploaded and processed successfully!"
	})

	if s.recorder != nil {
		err := s.recorder.Save(catalog.Ingestion{
			SourceID:   handle.SourceID,
			Name:       name,
			Location:   handle.Location,
			Store:      s.store,
			ChunkCount: chunks,
		})
		if err != nil {
			log.Warn().Err(err).Str("source", handle.SourceID).Msg("Failed to record ingestion")
		}
	}
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request) (string, models.IndexHandle, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", models.IndexHandle{}, 0, err
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	tmp, err := os.CreateTemp("", "upload-*"+strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return "", models.IndexHandle{}, 0, err
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, file)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", models.IndexHandle{}, 0, err
	}

	text, err := parser.ParseFile(tmp.Name())
	if err != nil {
		return "", models.IndexHandle{}, 0, err
	}

	handle, err := s.pipeline.ChunkAndIndex(r.Context(), text, uuid.NewString())
	if err != nil {
		return "", models.IndexHandle{}, 0, err
	}
	return name, handle, len(s.pipeline.SplitText(text)), nil
}

func (s *Server) HandleAsk(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	defer http.Redirect(w, r, "/", http.StatusSeeOther)

	question := strings.TrimSpace(r.FormValue("question"))
	if question == "" {
		return
	}

	s.mu.Lock()
	sess := s.session(id)
	handle := sess.Handle
	if !handle.IsZero() {
		sess.Messages = append(sess.Messages, models.ConversationMessage{Role: models.RoleUser, Content: question})
	}
	s.mu.Unlock()

	if handle.IsZero() {
		s.update(id, func(sess *session) { sess.Notice = uploadNotice })
		return
	}

	resp, err := s.pipeline.Query(r.Context(), handle, question, s.topK)
	if err != nil {
		log.Error().Err(err).Str("session", id).Msg("Query failed")
		notice := "Error answering question: " + err.Error()
		if errors.Is(err, models.ErrIndexUnavailable) {
			notice = uploadNotice
		}
		s.update(id, func(sess *session) { sess.Notice = notice })
		return
	}

	s.update(id, func(sess *session) {
		sess.Messages = append(sess.Messages, models.ConversationMessage{Role: models.RoleAssistant, Content: resp.Content})
		if resp.Context == "" {
			sess.Notice = models.NoContextNotice
		}
	})
}

func (s *Server) HandleReset(w http.ResponseWriter, r *http.Request) {
	id := s.sessionID(w, r)
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// session must be called with s.mu held.
func (s *Server) session(id string) *session {
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{}
		s.sessions[id] = sess
	}
	return sess
}

func (s *Server) update(id string, fn func(*session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.session(id))
}
