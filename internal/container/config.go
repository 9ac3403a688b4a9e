// Package container provides dependency injection and lifecycle management
// for the workflow gate service.
package container

import (
	"io/fs"
	"os"

	"github.com/garyjia/workflow-gate/internal/application/authz"
	"github.com/garyjia/workflow-gate/internal/config"
	infraLark "github.com/garyjia/workflow-gate/internal/infrastructure/external/lark"
	httpapi "github.com/garyjia/workflow-gate/internal/interfaces/http"
	"github.com/garyjia/workflow-gate/migrations"
	"github.com/garyjia/workflow-gate/pkg/database"
)

// Version is reported by the health endpoint; set at build time
var Version = "dev"

func databaseConfig(cfg config.DatabaseConfig) database.Config {
	return database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}
}

// migrationSource prefers an on-disk directory over the embedded migrations
func migrationSource(cfg config.DatabaseConfig) fs.FS {
	if cfg.MigrationsDir != "" {
		return os.DirFS(cfg.MigrationsDir)
	}
	return migrations.FS
}

func timeConstraintOptions(cfg config.AuthzConfig) ([]authz.TimeOption, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	start, end, err := cfg.Window()
	if err != nil {
		return nil, err
	}
	return []authz.TimeOption{
		authz.WithLocation(loc),
		authz.WithBusinessHours(start, end),
	}, nil
}

func larkConfig(cfg config.LarkConfig) infraLark.Config {
	return infraLark.Config{
		AppID:       cfg.AppID,
		AppSecret:   cfg.AppSecret,
		AlertChatID: cfg.AlertChatID,
		APITimeout:  cfg.APITimeout,
	}
}

func serverConfig(cfg *config.Config) httpapi.ServerConfig {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return httpapi.ServerConfig{
		Address:         cfg.Server.Address(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Mode:            cfg.Server.Mode,
		Version:         Version,
		MetricsPath:     metricsPath,
	}
}

func authConfig(cfg config.AuthConfig) httpapi.AuthConfig {
	return httpapi.AuthConfig{
		JWTSecret:      cfg.JWTSecret,
		JWTIssuer:      cfg.JWTIssuer,
		DevActorHeader: cfg.DevActorHeader,
	}
}
