package server

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/utrading/utrading-signal-gateway/config"
	"github.com/utrading/utrading-signal-gateway/internal/httpx"
	"github.com/utrading/utrading-signal-gateway/internal/monitor"
	"github.com/utrading/utrading-signal-gateway/pkg/goplus"
	"github.com/utrading/utrading-signal-gateway/pkg/logger"
)

const (
	HeaderRequestID = "X-Request-ID"

	ctxRouteKey = "route"
)

// Routes 对外暴露的四个入口
type Routes struct {
	Webhook      *httpx.Route
	ListSignals  *httpx.Route
	SignalDetail *httpx.Route
	Positions    *httpx.Route
}

// Server HTTP 入口，把 gin 请求转换为 httpx.Event
type Server struct {
	cfg    config.Gateway
	engine *gin.Engine
	server *http.Server
}

func NewServer(cfg config.Gateway, routes Routes) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	// 预检请求不能被重定向
	engine.RedirectTrailingSlash = false
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())
	engine.Use(preflight())

	s := &Server{cfg: cfg, engine: engine}
	s.register(routes)

	return s
}

func (s *Server) register(routes Routes) {
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	senders := prefix + "/signal-senders/:strategy_id"

	s.handle(s.cfg.WebhookPath, routes.Webhook)
	s.handle(senders+"/signals", routes.ListSignals)
	s.handle(senders+"/signals/:signal_id", routes.SignalDetail)
	s.handle(senders+"/positions", routes.Positions)

	s.engine.NoRoute(func(c *gin.Context) {
		write(c, httpx.Fail(httpx.NotFound("Not found")))
	})
}

func (s *Server) handle(path string, rt *httpx.Route) {
	if path == "" || rt == nil {
		return
	}
	s.engine.Any(path, adapt(rt, s.cfg.MaxBodyBytes))
}

// Handler 测试时可直接使用
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start 启动HTTP服务器
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	goplus.Go(func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("gateway server error")
		}
	})

	logger.Info().Str("addr", s.cfg.ListenAddr).Msg("gateway server started")
	return nil
}

// Stop 停止接收新请求并等待进行中的请求完成
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// adapt 将 gin 请求转换为 httpx.Event，并回写 httpx.Response
func adapt(rt *httpx.Route, maxBody int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ctxRouteKey, rt.Name)

		body, err := readBody(c.Request, maxBody)
		if err != nil {
			write(c, httpx.Fail(httpx.BadRequest("Failed to read request body")))
			return
		}

		ev := httpx.Event{
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			Host:       c.Request.Host,
			Headers:    flatten(c.Request.Header),
			Query:      flatten(c.Request.URL.Query()),
			PathParams: params(c.Params),
			Body:       body,
		}

		write(c, rt.Serve(c.Request.Context(), ev))
	}
}

// preflight 任意路径的 OPTIONS 请求都直接返回 200
func preflight() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodOptions {
			c.Next()
			return
		}
		c.Set(ctxRouteKey, "preflight")
		write(c, httpx.Preflight())
		c.Abort()
	}
}

// readBody 多读一个字节，超限由处理函数判定
func readBody(r *http.Request, maxBody int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	if maxBody <= 0 {
		return io.ReadAll(r.Body)
	}
	return io.ReadAll(io.LimitReader(r.Body, maxBody+1))
}

func write(c *gin.Context, resp *httpx.Response) {
	for k, v := range resp.Headers {
		c.Header(k, v)
	}
	c.Data(resp.Status, resp.Headers["Content-Type"], resp.Body)
}

// flatten 多值只取第一个
func flatten(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func params(ps gin.Params) map[string]string {
	out := make(map[string]string, len(ps))
	for _, p := range ps {
		out[p.Key] = p.Value
	}
	return out
}

// requestLogger 记录访问日志与请求指标
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(HeaderRequestID, requestID)

		c.Next()

		route := c.GetString(ctxRouteKey)
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		monitor.ObserveRequest(route, status, elapsed.Seconds())

		event := logger.Debug()
		if status >= http.StatusInternalServerError {
			event = logger.Warn()
		}
		event.Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("route", route).
			Int("status", status).
			Dur("elapsed", elapsed).
			Msg("request")
	}
}
