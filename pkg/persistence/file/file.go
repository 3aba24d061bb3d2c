// Package file provides file-based persistence for development and tests.
// Records are stored as one JSON document per file; conditional-write
// semantics are emulated by checking under a process-wide mutex.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mediaflux/mediaflux/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root string
	mu   sync.Mutex

	operationRepo *OperationRepository
	stageRepo     *StageRepository
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
	configRepo    *ConfigRepository
	lockRepo      *LockRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
// A "file://" prefix on the path is accepted and stripped.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.operationRepo = &OperationRepository{p: p}
	p.stageRepo = &StageRepository{p: p}
	p.workflowRepo = &WorkflowRepository{p: p}
	p.executionRepo = &ExecutionRepository{p: p}
	p.configRepo = &ConfigRepository{p: p}
	p.lockRepo = &LockRepository{p: p}

	return p
}

func (p *Persistence) Operations() persistence.OperationRepository { return p.operationRepo }
func (p *Persistence) Stages() persistence.StageRepository         { return p.stageRepo }
func (p *Persistence) Workflows() persistence.WorkflowRepository   { return p.workflowRepo }
func (p *Persistence) Executions() persistence.ExecutionRepository { return p.executionRepo }
func (p *Persistence) Config() persistence.ConfigRepository        { return p.configRepo }
func (p *Persistence) Locks() persistence.LockRepository           { return p.lockRepo }

// Close performs any necessary cleanup. Nothing to clean up for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) recordPath(kind, key string) string {
	return filepath.Join(p.root, kind, sanitize(key)+".json")
}

// sanitize keeps record keys usable as file names.
func sanitize(key string) string {
	replacer := strings.NewReplacer("/", "_", string(filepath.Separator), "_", " ", "_")

	return replacer.Replace(key)
}

func (p *Persistence) write(kind, key string, record any) error {
	dir := filepath.Join(p.root, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", kind, err)
	}

	if err := os.WriteFile(p.recordPath(kind, key), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s record: %w", kind, err)
	}

	return nil
}

func (p *Persistence) read(kind, key string, record any) (bool, error) {
	data, err := os.ReadFile(p.recordPath(kind, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s record: %w", kind, err)
	}

	if err := json.Unmarshal(data, record); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s record: %w", kind, err)
	}

	return true, nil
}

func (p *Persistence) exists(kind, key string) bool {
	_, err := os.Stat(p.recordPath(kind, key))

	return err == nil
}

func (p *Persistence) remove(kind, key string) (bool, error) {
	err := os.Remove(p.recordPath(kind, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to remove %s record: %w", kind, err)
	}

	return true, nil
}

// readAll decodes every record of a kind via the given loader.
func readAll(p *Persistence, kind string, load func(path string) error) error {
	dir := filepath.Join(p.root, kind)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("failed to list %s records: %w", kind, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		if err := load(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}

	return nil
}

func decodeFile(path string, record any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read record %s: %w", path, err)
	}

	if err := json.Unmarshal(data, record); err != nil {
		return fmt.Errorf("failed to unmarshal record %s: %w", path, err)
	}

	return nil
}
