// Package httpapi exposes the COSE verifier, CBOR diagnostic printer, and
// artifact store over HTTP: a thin external collaborator around pkg/cbor,
// pkg/cose and internal/keystore, internal/artifacts.
package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/tradeverifyd/cbor-cose-go/internal/artifacts"
	"github.com/tradeverifyd/cbor-cose-go/internal/config"
	"github.com/tradeverifyd/cbor-cose-go/pkg/cbor"
	"github.com/tradeverifyd/cbor-cose-go/pkg/cose"
)

// Server is the HTTP API server.
type Server struct {
	config    *config.Config
	keys      cose.KeyGetter
	artifacts artifacts.Store
	mux       *http.ServeMux
}

// NewServer creates a Server wired to the given key getter and artifact
// store.
func NewServer(cfg *config.Config, keys cose.KeyGetter, store artifacts.Store) *Server {
	s := &Server{config: cfg, keys: keys, artifacts: store, mux: http.NewServeMux()}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/cose/verify", s.handleVerify)
	s.mux.HandleFunc("/cbor/diagnostic", s.handleDiagnostic)
	s.mux.HandleFunc("/artifacts/", s.handleArtifact)
	s.mux.HandleFunc("/health", s.handleHealth)
}

// Start runs the HTTP server until it errors.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	log.Printf("cbordoc HTTP API listening on %s", addr)
	return http.ListenAndServe(addr, s.loggingMiddleware(s.corsMiddleware(s.mux)))
}

// Handler returns the wrapped HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.loggingMiddleware(s.corsMiddleware(s.mux))
}

type verifyResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// handleVerify handles POST /cose/verify: body is a raw COSE_Sign1 CBOR
// message, looked up by its protected/unprotected kid header.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	item, err := cbor.NewDecoder(bytes.NewReader(body)).Decode()
	if err != nil {
		writeVerifyResult(w, http.StatusBadRequest, verifyResponse{Valid: false, Error: err.Error()})
		return
	}
	if item.Kind != cbor.KindTag || item.Tag != cose.TagSign1 {
		writeVerifyResult(w, http.StatusBadRequest, verifyResponse{Valid: false, Error: "expected a tagged COSE_Sign1 message"})
		return
	}
	msg, err := cose.Sign1MessageFromItem(item.Content)
	if err != nil {
		writeVerifyResult(w, http.StatusBadRequest, verifyResponse{Valid: false, Error: err.Error()})
		return
	}
	if err := msg.Verify(s.keys, nil); err != nil {
		writeVerifyResult(w, http.StatusOK, verifyResponse{Valid: false, Error: err.Error()})
		return
	}
	writeVerifyResult(w, http.StatusOK, verifyResponse{Valid: true})
}

func writeVerifyResult(w http.ResponseWriter, status int, resp verifyResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// handleDiagnostic handles POST /cbor/diagnostic: body is raw CBOR,
// response is its RFC 8949 §8 diagnostic-notation text.
func (s *Server) handleDiagnostic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	item, err := cbor.NewDecoder(bytes.NewReader(body)).Decode()
	if err != nil {
		http.Error(w, fmt.Sprintf("decode failed: %v", err), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, item.Diagnostic(nil))
}

// handleArtifact handles GET /artifacts/{id}.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/artifacts/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	data, err := s.artifacts.Get(id)
	if err != nil {
		log.Printf("failed to get artifact %s: %v", id, err)
		http.Error(w, "failed to get artifact", http.StatusInternalServerError)
		return
	}
	if data == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("%s %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.Server.CORS.Enabled {
			if len(s.config.Server.CORS.AllowedOrigins) > 0 {
				origin := s.config.Server.CORS.AllowedOrigins[0]
				if origin == "*" {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					reqOrigin := r.Header.Get("Origin")
					for _, allowed := range s.config.Server.CORS.AllowedOrigins {
						if reqOrigin == allowed {
							w.Header().Set("Access-Control-Allow-Origin", reqOrigin)
							break
						}
					}
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
