package server

import (
	"context"
	goerrors "errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"postureguard/internal/engine"
	"postureguard/internal/posture"
	"postureguard/internal/stats"
	"postureguard/internal/storage"
	"postureguard/pkg/log"
)

var settingKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_.]{0,63}$`)

// Monitor is the part of the engine the API drives.
type Monitor interface {
	Status() *engine.Status
	Recalibrate(ctx context.Context) error
}

type Server struct {
	conf       Config
	monitor    Monitor
	gw         storage.Gateway
	stats      *stats.Service
	gatherer   prometheus.Gatherer
	httpServer *http.Server
	logger     *logrus.Entry
}

func NewServer(ctx context.Context, conf Config, monitor Monitor, gw storage.Gateway, gatherer prometheus.Gatherer) *Server {
	return &Server{
		conf:     conf,
		monitor:  monitor,
		gw:       gw,
		stats:    stats.NewService(gw),
		gatherer: gatherer,
		logger:   log.WithComponent(log.GetLogger(ctx), "server"),
	}
}

func RequestId() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestId := c.GetHeader(log.HttpXRequestId)
		if requestId == "" {
			requestId = strings.ReplaceAll(uuid.New().String(), "-", "")
		}
		c.Set(log.CtxRequestId, requestId)
		c.Header(log.HttpXRequestId, requestId)
		c.Next()
	}
}

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		t := time.Now()
		c.Next()
		log.GetLogger(c).WithFields(logrus.Fields{
			"ip":      c.ClientIP(),
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(t),
		}).Info("request")
	}
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	router := s.SetUpRouter()
	if s.conf.Pprof {
		pprof.Register(router)
	}
	s.httpServer = &http.Server{
		Addr:              s.conf.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var err error
	if s.conf.SSLCert != "" && s.conf.SSLKey != "" {
		s.logger.Infof("start https server on %s", s.conf.Addr)
		err = s.httpServer.ListenAndServeTLS(s.conf.SSLCert, s.conf.SSLKey)
	} else {
		s.logger.Infof("start http server on %s", s.conf.Addr)
		err = s.httpServer.ListenAndServe()
	}
	if err != nil && !goerrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(c *gin.Context, code int, err error) {
	if code >= http.StatusInternalServerError {
		log.GetLogger(c).WithError(err).Error(c.Request.URL.Path)
	}
	c.JSON(code, ErrorResponse{
		Error: err.Error(),
	})
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("camerarole", func(fl validator.FieldLevel) bool {
			_, err := posture.ParseRole(fl.Field().String())
			return err == nil
		})
		v.RegisterValidation("settingkey", func(fl validator.FieldLevel) bool {
			return settingKeyPattern.MatchString(fl.Field().String())
		})
	}
}
