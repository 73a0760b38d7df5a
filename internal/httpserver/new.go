package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"bookclub-notify/internal/queue"
	"bookclub-notify/internal/registry"
	"bookclub-notify/internal/ws"
	"bookclub-notify/pkg/log"
)

// HTTPServer hosts the live-connection endpoint and the operational surface
// (health, stats, metrics). New() only wires dependencies; Start() serves.
type HTTPServer struct {
	gin    *gin.Engine
	logger log.Logger
	host   string
	port   int

	wsHandler *ws.Handler
	reg       *registry.Registry
	q         *queue.TaskQueue
	gatherer  prometheus.Gatherer

	srv *http.Server
}

// Config is the constructor input for HTTPServer.
type Config struct {
	Host string
	Port int
	Mode string

	WSHandler *ws.Handler
	Registry  *registry.Registry
	Queue     *queue.TaskQueue
	Gatherer  prometheus.Gatherer
}

// New creates an HTTPServer. No goroutines are started here.
func New(logger log.Logger, cfg Config) (*HTTPServer, error) {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &HTTPServer{
		gin:       gin.New(),
		logger:    logger,
		host:      cfg.Host,
		port:      cfg.Port,
		wsHandler: cfg.WSHandler,
		reg:       cfg.Registry,
		q:         cfg.Queue,
		gatherer:  cfg.Gatherer,
	}
	s.gin.Use(gin.Recovery())

	if err := s.validate(); err != nil {
		return nil, err
	}

	s.mapRoutes()
	return s, nil
}

func (s *HTTPServer) validate() error {
	if s.logger == nil {
		return errors.New("logger is required")
	}
	if s.port == 0 {
		return errors.New("port is required")
	}
	if s.wsHandler == nil {
		return errors.New("websocket handler is required")
	}
	if s.reg == nil {
		return errors.New("registry is required")
	}
	if s.q == nil {
		return errors.New("queue is required")
	}
	return nil
}
