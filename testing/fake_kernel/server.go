package fake_kernel

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/gin-gonic/contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/api"
	"github.com/scusemua/notebook-kernel-client/common/jupyter/messaging"
	"github.com/scusemua/notebook-kernel-client/common/utils"
	"github.com/scusemua/notebook-kernel-client/common/utils/hashmap"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
)

const (
	DefaultKernelName = "python3"
)

// Server is a minimal Jupyter server: the kernels REST API plus the channels websocket of each kernel.
type Server struct {
	log logger.Logger

	token   string
	kernels *hashmap.OrderedMap[string, *FakeKernel]
	engine  *gin.Engine

	// RateLimit bounds the rate at which inbound messages are read from each connection.
	RateLimit rate.Limit
	Burst     int

	// RejectChannels, when true, refuses websocket upgrades, as a server whose kernel has died would.
	RejectChannels bool
}

// NewServer creates a Server. When token is non-empty, every request must carry it, either in an
// "Authorization: token ..." header or in a "token" query parameter.
func NewServer(token string) *Server {
	srv := &Server{
		token:     token,
		kernels:   hashmap.NewOrderedMap[string, *FakeKernel](),
		RateLimit: rate.Every(time.Millisecond * 100),
		Burst:     10,
	}

	config.InitLogger(&srv.log, srv)
	srv.initializeEngine()

	return srv
}

func (s *Server) initializeEngine() {
	gin.SetMode(gin.ReleaseMode)

	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.engine.Use(cors.Default())
	s.engine.Use(s.authenticate)

	kernels := s.engine.Group("/api/kernels")
	kernels.GET("", s.handleListKernels)
	kernels.POST("", s.handleStartKernel)
	kernels.GET("/:id", s.handleGetKernel)
	kernels.DELETE("/:id", s.handleShutdownKernel)
	kernels.POST("/:id/interrupt", s.handleInterruptKernel)
	kernels.POST("/:id/restart", s.handleRestartKernel)
	kernels.GET("/:id/channels", s.handleChannels)
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// AddKernel starts a new kernel without going through the REST API.
func (s *Server) AddKernel(name string) *FakeKernel {
	if name == "" {
		name = DefaultKernelName
	}

	kernel := NewFakeKernel(name)
	s.kernels.Store(kernel.ID(), kernel)
	return kernel
}

func (s *Server) Kernel(id string) (*FakeKernel, bool) {
	return s.kernels.Load(id)
}

func (s *Server) Kernels() []*FakeKernel {
	return s.kernels.Values()
}

// Crash removes the kernel and drops its connections without a close handshake, as a kernel process
// that died would.
func (s *Server) Crash(id string) bool {
	kernel, ok := s.kernels.LoadAndDelete(id)
	if !ok {
		return false
	}

	s.log.Warn(utils.RedStyle.Render("Crashing kernel %s."), id)
	kernel.setExecutionState(messaging.MessageKernelStatusDead)
	kernel.DropConnections()
	return true
}

// Close closes the connections of every kernel.
func (s *Server) Close() {
	for _, kernel := range s.kernels.Values() {
		kernel.Shutdown()
	}
}

func (s *Server) authenticate(c *gin.Context) {
	if s.token == "" {
		return
	}

	if c.Query("token") == s.token || strings.TrimPrefix(c.GetHeader("Authorization"), "token ") == s.token {
		return
	}

	s.log.Warn(utils.OrangeStyle.Render("Rejecting unauthenticated request %s %s."), c.Request.Method, c.Request.URL.Path)
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Forbidden"})
}

func (s *Server) lookup(c *gin.Context) (*FakeKernel, bool) {
	kernel, ok := s.kernels.Load(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "Kernel does not exist: " + c.Param("id")})
		return nil, false
	}

	return kernel, true
}

func (s *Server) handleListKernels(c *gin.Context) {
	models := make([]*api.Kernel, 0, s.kernels.Len())
	for _, kernel := range s.kernels.Values() {
		models = append(models, kernel.Model())
	}

	c.JSON(http.StatusOK, models)
}

func (s *Server) handleGetKernel(c *gin.Context) {
	if kernel, ok := s.lookup(c); ok {
		c.JSON(http.StatusOK, kernel.Model())
	}
}

func (s *Server) handleStartKernel(c *gin.Context) {
	var body struct {
		Name string `json:"name"`
	}

	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
	}

	kernel := s.AddKernel(body.Name)
	s.log.Debug("Started kernel %s (%s).", kernel.ID(), kernel.Name())

	c.JSON(http.StatusCreated, kernel.Model())
}

func (s *Server) handleShutdownKernel(c *gin.Context) {
	kernel, ok := s.lookup(c)
	if !ok {
		return
	}

	s.kernels.Delete(kernel.ID())
	kernel.Shutdown()
	s.log.Debug("Shut down kernel %s.", kernel.ID())

	c.Status(http.StatusNoContent)
}

func (s *Server) handleInterruptKernel(c *gin.Context) {
	if kernel, ok := s.lookup(c); ok {
		kernel.Interrupt()
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) handleRestartKernel(c *gin.Context) {
	if kernel, ok := s.lookup(c); ok {
		kernel.Restart()
		c.JSON(http.StatusOK, kernel.Model())
	}
}

func (s *Server) handleChannels(c *gin.Context) {
	kernel, ok := s.lookup(c)
	if !ok {
		return
	}

	if s.RejectChannels {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Kernel is not accepting connections"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Error("Failed to accept websocket connection because: %v", err)
		return
	}
	defer conn.CloseNow()

	kc := newKernelConn(kernel, c.Query("session_id"), conn, rate.NewLimiter(s.RateLimit, s.Burst))
	s.log.Debug("Accepted connection %d to kernel %s (session %s).", kc.id, kernel.ID(), kc.session)

	err = kc.serve(c.Request.Context())
	if status := websocket.CloseStatus(err); status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
		s.log.Debug("Connection %d to kernel %s closed: %v", kc.id, kernel.ID(), err)
		return
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Debug("Connection %d to kernel %s failed: %v", kc.id, kernel.ID(), err)
	}
}
