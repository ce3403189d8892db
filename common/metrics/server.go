package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/gin-gonic/contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/scusemua/notebook-kernel-client/common/utils"
)

var (
	ErrPrometheusServerAlreadyRunning = errors.New("PrometheusServer is already running")
	ErrPrometheusServerNotRunning     = errors.New("PrometheusServer is not running")
)

// PrometheusServer serves the collectors of a KernelClientMetrics over HTTP at /metrics.
type PrometheusServer struct {
	log logger.Logger
	mu  sync.Mutex

	port    int
	metrics *KernelClientMetrics

	prometheusHandler http.Handler
	engine            *gin.Engine
	httpServer        *http.Server
	serving           bool
}

// NewPrometheusServer creates a PrometheusServer that will listen on the given port once started.
// A port of 0 lets the operating system pick one.
func NewPrometheusServer(port int, metrics *KernelClientMetrics) (*PrometheusServer, error) {
	if metrics == nil {
		return nil, ErrMetricsNotInitialized
	}

	s := &PrometheusServer{
		port:              port,
		metrics:           metrics,
		prometheusHandler: promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}),
	}
	config.InitLogger(&s.log, s)

	s.initializeEngine()

	return s, nil
}

func (s *PrometheusServer) Port() int {
	return s.port
}

// Handler returns the gin engine that serves the metrics endpoint.
func (s *PrometheusServer) Handler() http.Handler {
	return s.engine
}

// IsRunning returns true if the PrometheusServer has been started and is serving metrics.
func (s *PrometheusServer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.serving
}

// Start begins serving metrics in a separate goroutine.
func (s *PrometheusServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.serving {
		return ErrPrometheusServerAlreadyRunning
	}

	address := fmt.Sprintf("0.0.0.0:%d", s.port)
	s.httpServer = &http.Server{
		Addr:    address,
		Handler: s.engine,
	}
	s.serving = true

	httpServer := s.httpServer
	go func() {
		s.log.Debug("Serving Prometheus metrics at %s/metrics", address)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error(utils.RedStyle.Render("HTTP Server failed to listen on '%s'. Error: %v"), address, err)
		}

		s.mu.Lock()
		if s.httpServer == httpServer {
			s.serving = false
		}
		s.mu.Unlock()
	}()

	return nil
}

// Stop shuts down the HTTP server.
func (s *PrometheusServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.serving {
		return ErrPrometheusServerNotRunning
	}

	s.serving = false
	s.log.Debug("Stopping Prometheus metrics server on port %d.", s.port)
	return s.httpServer.Shutdown(ctx)
}

// HandleRequest serves the Prometheus exposition of the registered collectors.
func (s *PrometheusServer) HandleRequest(c *gin.Context) {
	s.prometheusHandler.ServeHTTP(c.Writer, c.Request)
}

func (s *PrometheusServer) initializeEngine() {
	gin.SetMode(gin.ReleaseMode)

	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.engine.Use(cors.Default())
	s.engine.GET("/metrics", s.HandleRequest)
}
