package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sunomix/sunomix/pkg/filestore"
	"github.com/sunomix/sunomix/pkg/pipeline"
)

// DefaultTimeout bounds a whole request, generation can take minutes.
const DefaultTimeout = 10 * time.Minute

//go:embed static/*
var staticContent embed.FS

// Runner runs the generation pipeline.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

type Config struct {
	Debug   bool
	Addr    string
	Timeout time.Duration
}

type generateRequest struct {
	SunoURL string `json:"suno_url"`
	Lyrics  string `json:"lyrics"`
}

type generateResponse struct {
	Success        bool   `json:"success"`
	AudioURL       string `json:"audio_url,omitempty"`
	PolishedLyrics string `json:"polished_lyrics,omitempty"`
	Message        string `json:"message,omitempty"`
}

// NewHandler returns the router of the web service.
func NewHandler(runner Runner, store *filestore.Store, cfg *Config) (http.Handler, error) {
	staticFS, err := iofs.Sub(staticContent, "static")
	if err != nil {
		return nil, fmt.Errorf("web: couldn't load static content: %w", err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.Timeout(timeout))
	if cfg.Debug {
		mux.Use(middleware.Logger)
	}

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	mux.Post("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			log.Printf("web: invalid request body: %v\n", err)
			writeJSON(w, http.StatusBadRequest, &generateResponse{Message: "invalid request body"})
			return
		}
		req.SunoURL = strings.TrimSpace(req.SunoURL)
		if req.SunoURL == "" || strings.TrimSpace(req.Lyrics) == "" {
			log.Println("web: missing suno_url or lyrics")
			writeJSON(w, http.StatusBadRequest, &generateResponse{Message: "suno_url and lyrics are required"})
			return
		}

		res, err := runner.Run(r.Context(), pipeline.Request{
			SunoURL: req.SunoURL,
			Lyrics:  req.Lyrics,
		})
		if err != nil {
			// The timeout middleware answers with 504 once the handler returns
			if r.Context().Err() == context.DeadlineExceeded {
				log.Printf("web: request timed out: %v\n", err)
				return
			}
			msg := "generation failed"
			var serr *pipeline.StageError
			if errors.As(err, &serr) {
				msg = serr.Error()
			}
			writeJSON(w, http.StatusInternalServerError, &generateResponse{Message: msg})
			return
		}
		writeJSON(w, http.StatusOK, &generateResponse{
			Success:        true,
			AudioURL:       res.AudioURL,
			PolishedLyrics: res.PolishedLyrics,
		})
	})

	mux.Get("/audio/{filename}", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "filename")
		f, info, err := store.Open(name)
		if err != nil {
			log.Printf("web: couldn't serve %q: %v\n", name, err)
			writeJSON(w, http.StatusNotFound, &generateResponse{Message: "file not found"})
			return
		}
		defer f.Close()
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		http.ServeContent(w, r, name, info.ModTime(), f)
	})

	// Handler to serve the static files
	mux.Get("/*", http.StripPrefix("/", http.FileServer(http.FS(staticFS))).ServeHTTP)

	return mux, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: couldn't write response: %v\n", err)
	}
}

// Serve starts the web service and blocks until the context is done.
func Serve(ctx context.Context, runner Runner, store *filestore.Store, cfg *Config) error {
	log.Println("web: server started")
	defer log.Println("web: server ended")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handler, err := NewHandler(runner, store, cfg)
	if err != nil {
		return err
	}

	host, portStr, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return fmt.Errorf("web: invalid address %q: %w", cfg.Addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("web: invalid port: %s", portStr)
	}
	server := &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		note := fmt.Sprintf("http://%s:%d", host, port)
		if host == "" {
			note = fmt.Sprintf("all interfaces http://localhost:%d", port)
		}
		log.Printf("Starting server on %s\n", note)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errC <- fmt.Errorf("web: couldn't start server: %w", err)
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("web: couldn't shutdown server: %v\n", err)
	}
	select {
	case err := <-errC:
		return err
	default:
		return nil
	}
}
