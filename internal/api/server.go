package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/courtcut/courtcut-agent/internal/catalog"
	"github.com/courtcut/courtcut-agent/internal/export"
	"github.com/courtcut/courtcut-agent/internal/pipeline"
	"github.com/courtcut/courtcut-agent/internal/playback"
	"github.com/courtcut/courtcut-agent/internal/preflight"
)

// ClipController admits clip-creation requests.
type ClipController interface {
	Start(ctx context.Context, callerID string, req pipeline.Request, pub pipeline.Publisher) (string, error)
	Busy(callerID string) bool
	InFlight() int
}

// ProcessCanceller cancels a running encoder process by its tracking id.
type ProcessCanceller interface {
	Cancel(processID string) bool
}

type SystemChecker interface {
	Get(ctx context.Context) *preflight.Result
	Refresh(ctx context.Context) *preflight.Result
}

type Exporter interface {
	Batch(ctx context.Context, req export.Request) (*export.Result, error)
}

// EventHub broadcasts events to connected UIs.
type EventHub interface {
	Publish(topic string, data any)
	ServeWS(w http.ResponseWriter, r *http.Request)
	ClientCount() int
}

// ConfigStore holds agent-wide settings such as the auth token.
type ConfigStore interface {
	GetConfig(ctx context.Context, key string) (string, error)
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port           int
	Version        string
	CatalogService catalog.CatalogService
	ConfigStore    ConfigStore
	Controller     ClipController
	Canceller      ProcessCanceller
	SystemCheck    SystemChecker
	Exporter       Exporter
	PlaybackServer playback.MediaServer
	Hub            EventHub
	Logger         *slog.Logger
	StartTime      time.Time
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			// Media streaming and the websocket keep responses open.
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
	err := s.httpServer.Serve(ln)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
