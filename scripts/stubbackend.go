//go:build ignore

// Stubbackend is a stand-in for the terminal backend used to check the dev
// server's proxy by hand. It answers /execute, /history and /clear-history
// with the same JSON shapes as the real backend but never runs anything:
// /execute echoes the command back.
//
// Usage:
//
//	go run scripts/stubbackend.go -port 5000
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

type historyEntry struct {
	Command   string `json:"command"`
	Timestamp string `json:"timestamp"`
}

type stub struct {
	mu      sync.Mutex
	history []historyEntry
	log     *slog.Logger
}

func main() {
	port := flag.Int("port", 5000, "port to listen on")
	flag.Parse()

	s := &stub{log: slog.New(slog.NewTextHandler(os.Stdout, nil))}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /execute", s.execute)
	mux.HandleFunc("GET /history", s.listHistory)
	mux.HandleFunc("POST /clear-history", s.clearHistory)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such endpoint: " + r.URL.Path})
	})

	addr := fmt.Sprintf(":%d", *port)
	s.log.Info("starting stub backend", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, s.logRequests(mux)); err != nil {
		s.log.Error("server failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func (s *stub) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		s.log.Info("request",
			slog.String("request_id", id),
			slog.String("method", r.Method),
			slog.String("path", r.URL.RequestURI()),
			slog.String("host", r.Host))
		next.ServeHTTP(w, r)
	})
}

func (s *stub) execute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"output": "", "error": "invalid json"})
		return
	}

	s.mu.Lock()
	s.history = append(s.history, historyEntry{
		Command:   req.Command,
		Timestamp: time.Now().Format("2006-01-02T15:04:05.000000"),
	})
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"output": "stub: " + req.Command, "error": nil})
}

func (s *stub) listHistory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	history := append([]historyEntry{}, s.history...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *stub) clearHistory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
