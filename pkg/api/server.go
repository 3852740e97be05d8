package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cuemby/felt/pkg/log"
	"github.com/cuemby/felt/pkg/metrics"
	"github.com/cuemby/felt/pkg/types"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
)

// Lister returns the public session listing
type Lister interface {
	List() []types.SessionInfo
}

// Config holds listen addresses. An empty GRPCAddr disables the gRPC
// health service.
type Config struct {
	Addr     string
	GRPCAddr string
}

// Server is the public HTTP surface plus the gRPC health service
type Server struct {
	cfg    Config
	mux    *http.ServeMux
	http   *http.Server
	grpc   *grpc.Server
	health *GRPCHealth
	logger zerolog.Logger

	httpAddr net.Addr
	grpcAddr net.Addr
}

// NewServer wires the websocket endpoint, the session listing, health
// checks and metrics into one mux
func NewServer(cfg Config, ws http.Handler, sessions Lister) *Server {
	mux := http.NewServeMux()
	s := &Server{
		cfg:    cfg,
		mux:    mux,
		health: NewGRPCHealth(),
		logger: log.WithComponent("api"),
	}

	mux.Handle("/ws", ws)
	mux.HandleFunc("/api/sessions", s.sessionsHandler(sessions))
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	mux.Handle("/metrics", metrics.Handler())

	s.http = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if cfg.GRPCAddr != "" {
		s.grpc = grpc.NewServer(grpc.ChainUnaryInterceptor(RecoveryInterceptor(s.logger), LoggingInterceptor(s.logger)))
		s.health.Register(s.grpc)
	}
	return s
}

// Handler returns the HTTP handler for embedding in other servers
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Health returns the gRPC health bridge
func (s *Server) Health() *GRPCHealth {
	return s.health
}

// SessionsResponse is the body of GET /api/sessions
type SessionsResponse struct {
	Sessions []types.SessionInfo `json:"sessions"`
}

func (s *Server) sessionsHandler(sessions Lister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		list := sessions.List()
		if list == nil {
			list = []types.SessionInfo{}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(SessionsResponse{Sessions: list})
	}
}

// Start binds both listeners and serves them in the background. Bind
// failures are returned; later serve failures are logged.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.httpAddr = lis.Addr()

	var glis net.Listener
	if s.grpc != nil {
		glis, err = net.Listen("tcp", s.cfg.GRPCAddr)
		if err != nil {
			lis.Close()
			return fmt.Errorf("failed to listen on %s: %w", s.cfg.GRPCAddr, err)
		}
		s.grpcAddr = glis.Addr()
	}

	go func() {
		if err := s.http.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server failed")
		}
	}()
	s.logger.Info().Str("addr", s.httpAddr.String()).Msg("HTTP listening")

	if glis != nil {
		go func() {
			if err := s.grpc.Serve(glis); err != nil {
				s.logger.Error().Err(err).Msg("gRPC server failed")
			}
		}()
		s.logger.Info().Str("addr", s.grpcAddr.String()).Msg("gRPC health listening")
	}
	metrics.RegisterComponent(metrics.ComponentAPI, true, "")
	return nil
}

// Addr returns the bound HTTP address once started
func (s *Server) Addr() net.Addr {
	return s.httpAddr
}

// GRPCAddr returns the bound gRPC address, nil when disabled
func (s *Server) GRPCAddr() net.Addr {
	return s.grpcAddr
}

// Shutdown reports NOT_SERVING, stops the gRPC server and drains HTTP
func (s *Server) Shutdown(ctx context.Context) error {
	metrics.UpdateComponent(metrics.ComponentAPI, false, "shutting down")
	s.health.Shutdown()
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	return s.http.Shutdown(ctx)
}
