package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/voidshard/vidpipe/pkg/api"
	"github.com/voidshard/vidpipe/pkg/api/http/common"
	"github.com/voidshard/vidpipe/pkg/structs"
)

const (
	wait = 30 * time.Second
)

// Options for the HTTP server
type Options struct {
	// Addr to listen on (eg. ":8080")
	Addr string

	// OwnerHeader is the request header carrying the caller's identity,
	// set by whatever authenticates requests in front of us.
	OwnerHeader string

	// Debug adds per-request logging
	Debug bool

	// Blobs, if set, is served under /blobs (signed file store links)
	Blobs http.Handler
}

type Server struct {
	opts       *Options
	logger     zerolog.Logger
	svc        api.API
	exit       chan os.Signal
	httpserver *http.Server
}

func NewServer(logger zerolog.Logger, opts *Options) *Server {
	if opts.OwnerHeader == "" {
		opts.OwnerHeader = common.HEADER_OWNER
	}
	return &Server{
		opts:   opts,
		logger: logger.With().Str("component", "http").Logger(),
		exit:   make(chan os.Signal, 1),
	}
}

// Router returns the handler serving svc.
func (s *Server) Router(svc api.API) http.Handler {
	s.svc = svc

	router := mux.NewRouter()
	router.HandleFunc(common.API_HEALTH, s.Health).Methods(http.MethodGet)
	router.HandleFunc(common.API_JOBS, s.Jobs).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc(common.API_JOB, s.Status).Methods(http.MethodGet)
	router.HandleFunc(common.API_CANCEL, s.Cancel).Methods(http.MethodPost)
	router.HandleFunc(common.API_RESULT, s.Result).Methods(http.MethodGet)

	if s.opts.Blobs != nil {
		s.logger.Info().Str("path", common.API_BLOBS).Msg("serving signed blob links")
		router.PathPrefix(common.API_BLOBS + "/").Handler(http.StripPrefix(common.API_BLOBS, s.opts.Blobs))
	}

	if s.opts.Debug {
		s.logger.Info().Msg("debug enabled, adding per-request logging middleware")
		router.Use(loggingMiddleware(s.logger))
	}

	return router
}

// ServeForever serves until Close is called or we're interrupted.
func (s *Server) ServeForever(svc api.API) error {
	s.httpserver = &http.Server{
		Handler:      s.Router(svc),
		Addr:         s.opts.Addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpserver.Addr).Msg("listening")
		if err := s.httpserver.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()

	signal.Notify(s.exit, os.Interrupt)
	defer signal.Stop(s.exit)

	select {
	case err := <-errs:
		return err
	case <-s.exit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	return s.httpserver.Shutdown(ctx)
}

func (s *Server) Jobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getJobs(w, r)
	case http.MethodPost:
		s.submitJob(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	req := &structs.SubmitRequest{}
	err := unmarshalJson(w, r, req)
	if err != nil {
		return
	}

	resp, err := s.svc.Submit(r.Context(), s.owner(r), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJson(w, http.StatusCreated, resp)
}

func (s *Server) getJobs(w http.ResponseWriter, r *http.Request) {
	q := &structs.Query{}
	err := unmarshalQuery(w, r, q)
	if err != nil {
		return
	}
	if q.Owner == "" {
		q.Owner = s.owner(r)
	}

	resp, err := s.svc.Jobs(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.opts.Debug {
		s.logger.Debug().Str("url", r.URL.String()).Int("items", len(resp.Jobs)).Msg("listed jobs")
	}

	writeJson(w, http.StatusOK, resp)
}

func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.Status(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJson(w, http.StatusOK, resp)
}

func (s *Server) Cancel(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.Cancel(r.Context(), mux.Vars(r)["id"], s.owner(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJson(w, http.StatusOK, resp)
}

func (s *Server) Result(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.Result(r.Context(), mux.Vars(r)["id"], s.owner(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJson(w, http.StatusOK, resp)
}

func (s *Server) Close() error {
	select {
	case s.exit <- os.Interrupt:
	default: // already closing
	}
	return nil
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) owner(r *http.Request) string {
	return r.Header.Get(s.opts.OwnerHeader)
}
