// Package postgresql provides PostgreSQL persistence for workflow
// definitions, executions, configuration and asset locks. Records are stored
// as JSONB documents beside the columns the conditional writes and
// reverse-dependency queries filter on.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/mediaflux/mediaflux/pkg/persistence"
	"github.com/mediaflux/mediaflux/pkg/persistence/sqlbase"
)

// Persistence implements persistence.Persistence on PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	operationRepo *OperationRepository
	stageRepo     *StageRepository
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
	configRepo    *ConfigRepository
	lockRepo      *LockRepository
}

// NewPersistence connects, runs migrations and returns the persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	p := &Persistence{db: database, logger: logger}
	p.operationRepo = &OperationRepository{db: database}
	p.stageRepo = &StageRepository{db: database}
	p.workflowRepo = &WorkflowRepository{db: database}
	p.executionRepo = &ExecutionRepository{db: database}
	p.configRepo = &ConfigRepository{db: database}
	p.lockRepo = &LockRepository{db: database}

	return p, nil
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS operations (
				name TEXT PRIMARY KEY,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS stages (
				name TEXT PRIMARY KEY,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS workflows (
				name TEXT PRIMARY KEY,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS workflow_executions (
				id TEXT PRIMARY KEY,
				status TEXT NOT NULL,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_workflow_executions_status
				ON workflow_executions (status);

			CREATE TABLE IF NOT EXISTS system_config (
				key TEXT PRIMARY KEY,
				value INTEGER NOT NULL
			);

			CREATE TABLE IF NOT EXISTS asset_locks (
				asset_id TEXT PRIMARY KEY,
				locked_by TEXT NOT NULL,
				locked_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
		`,
	}
}

func (p *Persistence) Operations() persistence.OperationRepository { return p.operationRepo }
func (p *Persistence) Stages() persistence.StageRepository         { return p.stageRepo }
func (p *Persistence) Workflows() persistence.WorkflowRepository   { return p.workflowRepo }
func (p *Persistence) Executions() persistence.ExecutionRepository { return p.executionRepo }
func (p *Persistence) Config() persistence.ConfigRepository        { return p.configRepo }
func (p *Persistence) Locks() persistence.LockRepository           { return p.lockRepo }

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}
