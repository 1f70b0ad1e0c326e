package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/textsource/engine/internal/config"
	"github.com/textsource/engine/internal/finder"
)

// SourceService is the part of the finder the API depends on.
type SourceService interface {
	FindSources(text string, topK int) []finder.SourceMatch
	LocateSourcePositions(text string, opts finder.LocateOptions) []finder.SourcePosition
	Stats() finder.Stats
}

type Server struct {
	Config  *config.Config
	Service SourceService
	Logger  *logrus.Entry
	Router  *http.ServeMux

	started time.Time
}

func NewServer(cfg *config.Config, service SourceService, logger *logrus.Entry) *Server {
	s := &Server{
		Config:  cfg,
		Service: service,
		Logger:  logger,
		Router:  http.NewServeMux(),
		started: time.Now(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.HandleFunc("/api/v1/sources", s.handleSources)
	s.Router.HandleFunc("/api/v1/positions", s.handlePositions)
	s.Router.HandleFunc("/api/v1/status", s.handleStatus)
}

func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         s.Config.HTTP.Addr,
		Handler:      s.Router,
		ReadTimeout:  s.Config.HTTP.ReadTimeout,
		WriteTimeout: s.Config.HTTP.WriteTimeout,
	}
	s.Logger.Infof("Starting API server on %s", s.Config.HTTP.Addr)
	return srv.ListenAndServe()
}

// Responses

type ErrorResponse struct {
	Error string `json:"error"`
}

type SourcesResponse struct {
	Query   string            `json:"query"`
	Matches []SourceMatchView `json:"matches"`
}

type SourceMatchView struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

type PositionsResponse struct {
	Query     string               `json:"query"`
	Positions []SourcePositionView `json:"positions"`
}

type SourcePositionView struct {
	Path    string  `json:"path"`
	Index   int     `json:"index"`
	Label   string  `json:"label"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

type StatusResponse struct {
	Files         int    `json:"files"`
	Documents     int    `json:"documents"`
	BuildDuration string `json:"build_duration"`
	Uptime        string `json:"uptime"`
}

// Handlers

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Query 'q' is required"})
		return
	}

	topK, err := intParam(r, "top_k", s.Config.Finder.TopK)
	if err != nil {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	matches := s.Service.FindSources(query, topK)

	response := SourcesResponse{
		Query:   query,
		Matches: make([]SourceMatchView, len(matches)),
	}
	for i, match := range matches {
		response.Matches[i] = SourceMatchView{
			Path:  match.Path,
			Score: match.Score,
		}
	}

	jsonResponse(w, http.StatusOK, response)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Query 'q' is required"})
		return
	}

	// Absent parameters stay zero so the finder applies configured defaults.
	topK, err := intParam(r, "top_k", 0)
	if err != nil {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	maxPositions, err := intParam(r, "max_positions", 0)
	if err != nil {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	snippetLen, err := intParam(r, "snippet_len", 0)
	if err != nil {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	positions := s.Service.LocateSourcePositions(query, finder.LocateOptions{
		TopK:       topK,
		MaxPerFile: maxPositions,
		SnippetLen: snippetLen,
	})

	response := PositionsResponse{
		Query:     query,
		Positions: make([]SourcePositionView, len(positions)),
	}
	for i, position := range positions {
		response.Positions[i] = SourcePositionView{
			Path:    position.Path,
			Index:   position.Index,
			Label:   position.Label,
			Snippet: position.Snippet,
			Score:   position.Score,
		}
	}

	jsonResponse(w, http.StatusOK, response)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.Service.Stats()

	jsonResponse(w, http.StatusOK, StatusResponse{
		Files:         stats.Files,
		Documents:     stats.Documents,
		BuildDuration: stats.BuildDuration.String(),
		Uptime:        time.Since(s.started).String(),
	})
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("'%s' must be an integer", name)
	}
	return value, nil
}

func jsonResponse(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
