package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/workflow-gate/internal/application/authz"
	"github.com/garyjia/workflow-gate/internal/application/dispatcher"
	"github.com/garyjia/workflow-gate/internal/application/port"
	"github.com/garyjia/workflow-gate/internal/application/workflow"
	"github.com/garyjia/workflow-gate/internal/config"
	"github.com/garyjia/workflow-gate/internal/domain/event"
	"github.com/garyjia/workflow-gate/internal/infrastructure/metrics"
	"github.com/garyjia/workflow-gate/internal/infrastructure/persistence/sqlite"
	httpapi "github.com/garyjia/workflow-gate/internal/interfaces/http"
	"github.com/garyjia/workflow-gate/pkg/database"
	"go.uber.org/zap"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config   *config.Config
	logger   *zap.Logger
	withHTTP bool

	// Infrastructure
	db           *database.DB
	txManager    *sqlite.DB
	repositories *RepositoryBundle
	recorder     *metrics.Recorder
	alerter      port.AlertSender

	// Application
	evaluator  *authz.Evaluator
	dispatcher dispatcher.Dispatcher
	engine     workflow.Engine
	services   *ServiceBundle

	// Interfaces
	server *httpapi.Server

	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Option configures a Container
type Option func(*Container)

// WithoutHTTP skips building the HTTP server, for operator commands
func WithoutHTTP() Option {
	return func(c *Container) {
		c.withHTTP = false
	}
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	c := &Container{config: cfg, logger: logger, withHTTP: true}
	for _, opt := range opts {
		opt(c)
	}

	validate := cfg.Validate
	if !c.withHTTP {
		validate = cfg.ValidateCore
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return c, nil
}

// Start initializes all components:
// 1. Database, migrations and repositories
// 2. Permission evaluator
// 3. Metrics and alerting
// 4. Dispatcher, workflow engine and services
// 5. HTTP server (not listening until Server().Start)
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	evaluator, err := ProvideEvaluator(c.repositories, c.config.Authz, c.logger)
	if err != nil {
		_ = c.closeDatabase()
		return fmt.Errorf("failed to initialize evaluator: %w", err)
	}
	c.evaluator = evaluator

	if c.config.Metrics.Enabled {
		c.recorder = metrics.NewRecorder()
	}
	c.alerter = ProvideAlerter(c.config.Lark, c.logger)

	c.dispatcher = ProvideDispatcher(c.logger)
	c.engine = ProvideWorkflowEngine(c.repositories, c.txManager, c.evaluator, c.dispatcher, c.logger)
	c.services = ProvideServices(c.repositories, c.config, c.alerter, c.logger)
	ProvideSubscribers(c.dispatcher, c.recorder, c.services)
	c.logger.Info("Dispatcher and workflow engine initialized",
		zap.Bool("metrics", c.recorder != nil),
		zap.Bool("alerts", c.alerter != nil))

	if c.withHTTP {
		c.server = ProvideHTTPServer(c.config, c.engine, c.services.Query, c.recorder, c.logger)
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	var errs []error

	if c.server != nil {
		if err := c.server.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop http server: %w", err))
		}
	}

	// waits for in-flight async handlers before the store goes away
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if err := c.closeDatabase(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors: %v", len(errs), errs)
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.db == nil:
		set("database", false, "not initialized")
	default:
		if err := c.db.PingContext(ctx); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, "")
		}
	}

	if c.dispatcher != nil {
		set("dispatcher", true, fmt.Sprintf("%d permission.denied handlers", len(c.dispatcher.ListHandlers(event.TypePermissionDenied))))
	} else {
		set("dispatcher", false, "not initialized")
	}

	set("engine", c.engine != nil, "")
	return status
}

func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.db = bundle.DB
	c.txManager = bundle.TransactionMgr

	repos, err := ProvideRepositories(c.db, c.logger)
	if err != nil {
		_ = c.closeDatabase()
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) closeDatabase() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	if err != nil {
		c.logger.Error("Failed to close database", zap.Error(err))
	}
	c.db = nil
	return err
}

// DB returns the raw database handle.
func (c *Container) DB() *database.DB {
	return c.db
}

// TransactionManager returns the context-propagating transaction manager.
func (c *Container) TransactionManager() port.TransactionManager {
	return c.txManager
}

// Repositories returns the repository bundle.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Evaluator returns the permission evaluator.
func (c *Container) Evaluator() *authz.Evaluator {
	return c.evaluator
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// WorkflowEngine returns the workflow engine.
func (c *Container) WorkflowEngine() workflow.Engine {
	return c.engine
}

// Services returns the service bundle.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Server returns the HTTP server, nil when built WithoutHTTP.
func (c *Container) Server() *httpapi.Server {
	return c.server
}

// Logger returns the root logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the loaded configuration.
func (c *Container) Config() *config.Config {
	return c.config
}
