package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apihttp "github.com/GriffinCanCode/devbox/internal/api/http"
	"github.com/GriffinCanCode/devbox/internal/api/middleware"
	"github.com/GriffinCanCode/devbox/internal/api/ws"
	"github.com/GriffinCanCode/devbox/internal/editor"
	"github.com/GriffinCanCode/devbox/internal/infrastructure/config"
	"github.com/GriffinCanCode/devbox/internal/infrastructure/logging"
	"github.com/GriffinCanCode/devbox/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/devbox/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/devbox/internal/orchestrator"
	"github.com/GriffinCanCode/devbox/internal/project"
	"github.com/GriffinCanCode/devbox/internal/sandbox"
	"github.com/GriffinCanCode/devbox/internal/terminal"
)

// ShutdownTimeout bounds the graceful HTTP shutdown.
const ShutdownTimeout = 10 * time.Second

// Runtime is the sandbox the server drives. sandbox.Local satisfies it.
type Runtime = sandbox.Runtime

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	env     *orchestrator.Orchestrator
	runtime Runtime
	term    *terminal.Surface
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a server backed by a local sandbox.
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	rt := sandbox.NewLocal(sandbox.Config{
		WorkspaceDir:  cfg.Sandbox.WorkspaceDir,
		KeepWorkspace: cfg.Sandbox.KeepWorkspace,
		ReadyPorts:    cfg.Sandbox.ReadyPorts,
		ProbeInterval: cfg.Sandbox.ProbeInterval,
		URLTemplate:   cfg.Sandbox.URLTemplate,
	}, logger.Logger)
	return New(cfg, logger, rt)
}

// New creates a server around an existing runtime.
func New(cfg *config.Config, logger *logging.Logger, rt Runtime) (*Server, error) {
	logger.Info("Initializing devbox server",
		zap.String("addr", cfg.Addr()),
		zap.String("install", cfg.Commands.Install),
		zap.String("dev", cfg.Commands.Dev),
	)

	tree, err := loadProject(cfg.Project.TemplatePath)
	if err != nil {
		return nil, err
	}
	if _, ok := tree.Lookup(cfg.Project.EditablePath); !ok {
		logger.Warn("Editable file is not part of the project", zap.String("path", cfg.Project.EditablePath))
	}

	orchCfg, err := commands(cfg.Commands)
	if err != nil {
		return nil, err
	}

	metrics := monitoring.NewMetrics()
	term := terminal.New(terminal.Config{
		Cols:       cfg.Terminal.Cols,
		Rows:       cfg.Terminal.Rows,
		Scrollback: cfg.Terminal.ScrollbackBytes,
		ConvertEOL: true,
	}, logger.Logger)
	buf := editor.NewBuffer(cfg.Project.EditablePath)

	env := orchestrator.New(orchCfg, orchestrator.Deps{
		Runtime:       rt,
		Tree:          tree,
		Terminal:      term,
		Buffer:        buf,
		Logger:        logger.Logger,
		Recorder:      metrics,
		EditorOptions: []editor.Option{editor.WithDebounce(cfg.Editor.Debounce)},
	})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(logger.Logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.NewCORSConfig(cfg.Server.CORSOrigins)))
	if limit := rateLimiter(cfg.RateLimit); limit != nil {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
			zap.Bool("global", cfg.RateLimit.Global),
		)
		router.Use(limit)
	}

	handlers := apihttp.NewHandlers(apihttp.Deps{
		Env:      env,
		Buffer:   buf,
		Terminal: term,
		Files:    rt,
		Metrics:  metrics,
		Logger:   logger.Logger,
	})
	wsHandler := ws.NewHandler(ws.Deps{
		Env:         env,
		Buffer:      buf,
		Terminal:    term,
		Metrics:     metrics,
		Logger:      logger.Logger,
		CheckOrigin: middleware.OriginChecker(cfg.Server.CORSOrigins),
	})

	handlers.Register(router)
	router.GET("/ws", wsHandler.HandleConnection)
	router.GET("/metrics", gin.WrapH(monitoring.Handler(metrics)))

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		env:     env,
		runtime: rt,
		term:    term,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// rateLimiter returns the configured limiter, nil when disabled.
func rateLimiter(cfg config.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return nil
	}
	rl := middleware.DefaultRateLimitConfig()
	rl.RequestsPerSecond = cfg.RequestsPerSecond
	rl.Burst = cfg.Burst
	if cfg.Global {
		return middleware.GlobalRateLimit(rl)
	}
	return middleware.RateLimit(rl)
}

// loadProject reads the mounted project: the built-in template when path is
// empty, a directory tree, or a YAML template file.
func loadProject(path string) (project.Tree, error) {
	if path == "" {
		return project.DefaultTemplate()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if info.IsDir() {
		return project.LoadDir(context.Background(), path, project.DefaultIgnore)
	}
	return project.LoadTemplate(path)
}

func commands(cfg config.CommandConfig) (orchestrator.Config, error) {
	install, err := orchestrator.ParseCommand(cfg.Install)
	if err != nil {
		return orchestrator.Config{}, fmt.Errorf("install command: %w", err)
	}
	dev, err := orchestrator.ParseCommand(cfg.Dev)
	if err != nil {
		return orchestrator.Config{}, fmt.Errorf("dev command: %w", err)
	}
	shell, err := orchestrator.ParseCommand(cfg.Shell)
	if err != nil {
		return orchestrator.Config{}, fmt.Errorf("shell command: %w", err)
	}
	return orchestrator.Config{
		Install:      install,
		Dev:          dev,
		Shell:        shell,
		DrainTimeout: cfg.DrainTimeout,
	}, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Environment returns the orchestrator.
func (s *Server) Environment() *orchestrator.Orchestrator { return s.env }

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve starts the environment and serves HTTP on ln until ctx is done or
// the listener fails. A failed environment start is reported to viewers
// and does not stop the server.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          s.logger.StdLog("http"),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		s.logger.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		if err := s.env.Start(gctx); err != nil {
			s.logger.Error("Environment failed to start", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}

// Close tears down the environment and the sandbox, then flushes logs.
func (s *Server) Close() error {
	var errs []error
	if err := s.env.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.runtime.Close(); err != nil {
		errs = append(errs, fmt.Errorf("sandbox close: %w", err))
	}
	if err := s.logger.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
