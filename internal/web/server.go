// Package web exposes the capture session over HTTP: a JSON API, a
// websocket live stream, and a minimal built-in page.
package web

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"gosniff/internal/capture"
	"gosniff/internal/export"
	"gosniff/internal/health"
)

//go:embed index.html
var indexPage []byte

// defaultRecentCount is used when /api/packets has no count parameter.
const defaultRecentCount = 50

// statsPushInterval paces the periodic stats frames on the live stream.
const statsPushInterval = time.Second

// Server wires the capture session to HTTP consumers.
type Server struct {
	session   *capture.Session
	addr      string
	port      int
	exportDir string
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a web server bound to host:port.
func NewServer(session *capture.Session, host string, port int, exportDir string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		session:   session,
		addr:      fmt.Sprintf("%s:%d", host, port),
		port:      port,
		exportDir: exportDir,
		logger:    logger,
	}
}

// Routes builds the HTTP handler. Exposed for tests.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/interfaces", s.handleInterfaces)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/packets", s.handlePackets)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/start", s.handleStart)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/clear", s.handleClear)
	mux.HandleFunc("/api/export", s.handleExport)
	mux.Handle("/api/live", websocket.Handler(s.handleLive))
	return mux
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websocket connections are long-lived
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("web server error", zap.Error(err))
		}
	}()

	s.logger.Info("web server started", zap.String("addr", s.addr))
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type actionResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	File    string `json:"file,omitempty"`
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeJSON(w, http.StatusMethodNotAllowed, actionResponse{Success: false, Error: "method not allowed"})
		return false
	}
	return true
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexPage)
}

func (s *Server) handleInterfaces(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	names, err := capture.ListInterfaces()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, actionResponse{Success: false, Error: err.Error()})
		return
	}
	infos := make([]capture.InterfaceInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, capture.LookupInterface(name))
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.session.Status())
}

func (s *Server) handlePackets(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	count := defaultRecentCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, actionResponse{Success: false, Error: "count must be an integer"})
			return
		}
		count = parsed
	}
	writeJSON(w, http.StatusOK, s.session.RecentRecords(count))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.session.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, health.Run(health.Options{WebPort: 0, ExportDir: s.exportDir}))
}

type startRequest struct {
	Interface string `json:"interface"`
	Filter    string `json:"filter"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, actionResponse{Success: false, Error: "invalid JSON body"})
		return
	}
	if req.Interface == "" {
		writeJSON(w, http.StatusBadRequest, actionResponse{Success: false, Error: "interface not specified"})
		return
	}

	err := s.session.Start(req.Interface, req.Filter)
	switch {
	case errors.Is(err, capture.ErrAlreadyCapturing):
		writeJSON(w, http.StatusConflict, actionResponse{Success: false, Error: err.Error()})
	case err != nil:
		s.logger.Warn("start capture failed", zap.String("interface", req.Interface), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, actionResponse{Success: false, Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, actionResponse{Success: true})
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.session.Stop()
	writeJSON(w, http.StatusOK, actionResponse{Success: true})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.session.Clear()
	writeJSON(w, http.StatusOK, actionResponse{Success: true})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	path, err := export.WriteSnapshot(s.session.Export(), s.exportDir)
	if err != nil {
		s.logger.Error("export failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, actionResponse{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Success: true, File: path})
}
