package liveview

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// shutdownTimeout bounds the graceful shutdown. MJPEG clients never go idle, so the server
// is closed forcibly once it elapses.
const shutdownTimeout = 3 * time.Second

const indexPage = `<!DOCTYPE html>
<html>
<head><title>Motion</title></head>
<body style="margin:0;background:#000">
<img src="/stream" style="width:100%" alt="live view">
</body>
</html>
`

// StatusFunc returns the JSON-serializable pipeline status.
type StatusFunc func() any

// Server exposes the live view and the pipeline status over HTTP.
type Server struct {
	addr      string
	engine    *gin.Engine
	publisher *Publisher
	status    StatusFunc
	logger    *zap.Logger
}

// NewServer builds the HTTP routes:
//
//	GET /         HTML page embedding the stream
//	GET /stream   multipart/x-mixed-replace MJPEG stream
//	GET /status   pipeline status JSON
//	GET /stats    live view delivery counters
//	GET /healthz  liveness probe
func NewServer(addr string, publisher *Publisher, status StatusFunc, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		addr:      addr,
		engine:    gin.New(),
		publisher: publisher,
		status:    status,
		logger:    logger,
	}

	s.engine.Use(gin.Recovery(), s.accessLog())
	s.engine.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexPage))
	})
	s.engine.GET("/stream", gin.WrapH(publisher.Stream()))
	s.engine.GET("/status", func(c *gin.Context) {
		if s.status == nil {
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		c.JSON(http.StatusOK, s.status())
	})
	s.engine.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.publisher.Stats())
	})
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled.
//
// Returns:
//   - error: nil after a shutdown caused by ctx, otherwise the listen error.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("Live view listening", zap.String("addr", s.addr))
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return errors.Wrapf(err, "live view server on %s", s.addr)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Debug("Forcing live view shutdown", zap.Error(err))
		_ = srv.Close()
	}
	return nil
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/stream" {
			s.logger.Debug("Live view client disconnected",
				zap.String("remote", c.ClientIP()),
				zap.Duration("duration", time.Since(start)))
			return
		}
		s.logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
