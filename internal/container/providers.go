package container

import (
	"fmt"

	"github.com/garyjia/workflow-gate/internal/application/authz"
	"github.com/garyjia/workflow-gate/internal/application/dispatcher"
	"github.com/garyjia/workflow-gate/internal/application/port"
	"github.com/garyjia/workflow-gate/internal/application/service"
	"github.com/garyjia/workflow-gate/internal/application/workflow"
	"github.com/garyjia/workflow-gate/internal/config"
	"github.com/garyjia/workflow-gate/internal/domain/event"
	"github.com/garyjia/workflow-gate/internal/infrastructure/export"
	infraLark "github.com/garyjia/workflow-gate/internal/infrastructure/external/lark"
	"github.com/garyjia/workflow-gate/internal/infrastructure/metrics"
	"github.com/garyjia/workflow-gate/internal/infrastructure/persistence/repository"
	"github.com/garyjia/workflow-gate/internal/infrastructure/persistence/sqlite"
	httpapi "github.com/garyjia/workflow-gate/internal/interfaces/http"
	"github.com/garyjia/workflow-gate/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Workflow     port.WorkflowRepository
	Instance     port.InstanceRepository
	History      port.HistoryRepository
	Audit        port.AuditRepository
	Permission   port.PermissionRepository
	Organization *repository.OrganizationRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Query       service.QueryService
	AuditReport *service.AuditReportService
	Alert       *service.AlertService // nil when alerting is disabled
}

// ProvideDatabase opens the store and applies pending migrations.
func ProvideDatabase(cfg config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	db, err := database.New(databaseConfig(cfg), logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrations(migrationSource(cfg)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &RepositoryBundle{
		Workflow:     repository.NewWorkflowRepository(db.DB, logger),
		Instance:     repository.NewInstanceRepository(db.DB, logger),
		History:      repository.NewHistoryRepository(db.DB, logger),
		Audit:        repository.NewAuditRepository(db.DB, logger),
		Permission:   repository.NewPermissionRepository(db.DB, logger),
		Organization: repository.NewOrganizationRepository(db.DB, logger),
	}, nil
}

// ProvideEvaluator builds the permission evaluator with the configured business hours.
func ProvideEvaluator(repos *RepositoryBundle, cfg config.AuthzConfig, logger *zap.Logger) (*authz.Evaluator, error) {
	opts, err := timeConstraintOptions(cfg)
	if err != nil {
		return nil, err
	}
	conditions := authz.NewConditionEvaluator(authz.NewTimeConstraintEvaluator(opts...))

	return authz.NewEvaluator(
		repos.Organization,
		repos.Permission,
		repos.Organization,
		conditions,
		logger.Named("authz"),
	), nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(dispatcher.WithLogger(logger.Named("dispatcher")))
}

// ProvideWorkflowEngine creates the engine over the repositories.
func ProvideWorkflowEngine(
	repos *RepositoryBundle,
	txManager port.TransactionManager,
	evaluator workflow.PermissionEvaluator,
	d dispatcher.Dispatcher,
	logger *zap.Logger,
) workflow.Engine {
	return workflow.NewEngine(
		repos.Workflow,
		repos.Instance,
		repos.History,
		repos.Audit,
		txManager,
		evaluator,
		workflow.WithDispatcher(d),
		workflow.WithLogger(logger.Named("workflow")),
	)
}

// ProvideAlerter returns nil when Lark alerting is disabled.
func ProvideAlerter(cfg config.LarkConfig, logger *zap.Logger) port.AlertSender {
	if !cfg.Enabled {
		return nil
	}
	return infraLark.NewAlerter(larkConfig(cfg), logger.Named("lark"))
}

// ProvideServices creates the application services.
func ProvideServices(repos *RepositoryBundle, cfg *config.Config, alerter port.AlertSender, logger *zap.Logger) *ServiceBundle {
	bundle := &ServiceBundle{
		Query: service.NewQueryService(
			repos.Workflow,
			repos.Instance,
			repos.History,
			logger,
			service.WithLimits(cfg.Instances.DefaultLimit, cfg.Instances.MaxLimit),
		),
		AuditReport: service.NewAuditReportService(repos.Audit, export.NewXLSXWriter(logger), logger),
	}
	if alerter != nil {
		bundle.Alert = service.NewAlertService(alerter, logger.Named("alert"))
	}
	return bundle
}

// ProvideSubscribers attaches metrics and alerting to the dispatcher.
func ProvideSubscribers(d dispatcher.Dispatcher, recorder *metrics.Recorder, services *ServiceBundle) {
	if recorder != nil {
		recorder.Register(d)
	}
	if services.Alert != nil {
		d.SubscribeNamed(event.TypePermissionDenied, "alert.denial", services.Alert.HandlePermissionDenied)
	}
}

// ProvideHTTPServer creates the HTTP adapter. recorder may be nil.
func ProvideHTTPServer(cfg *config.Config, engine workflow.Engine, queries service.QueryService, recorder *metrics.Recorder, logger *zap.Logger) *httpapi.Server {
	var observer httpapi.RequestObserver
	if recorder != nil {
		observer = recorder
	}
	httpLogger := logger.Named("http")
	return httpapi.NewServer(
		serverConfig(cfg),
		engine,
		queries,
		httpapi.NewAuthenticator(authConfig(cfg.Auth), httpLogger),
		observer,
		httpLogger,
	)
}
