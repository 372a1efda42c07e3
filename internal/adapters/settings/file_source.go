package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mikey/ai-cost-optimizer/internal/core"
	"go.uber.org/zap"
)

// ErrInvalidOrganization is returned for identifiers that cannot name a settings file
var ErrInvalidOrganization = errors.New("invalid organization id")

// FileSource reads <dir>/<org>.json on every call so edits apply to the next decision
type FileSource struct {
	dir    string
	logger *zap.Logger
}

// NewFileSource creates a file-backed settings source
func NewFileSource(dir string, logger *zap.Logger) *FileSource {
	return &FileSource{dir: dir, logger: logger}
}

// Load returns the organization's settings. A missing file yields the defaults. Fields that
// cannot be decoded keep their defaults and the parse error is returned with the config.
func (s *FileSource) Load(ctx context.Context, organizationID string) (core.OptimizationConfig, error) {
	path, err := s.path(organizationID)
	if err != nil {
		return core.DefaultOptimizationConfig(), err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("No settings file for organization, using defaults",
			zap.String("organization_id", organizationID))
		return core.DefaultOptimizationConfig(), nil
	}
	if err != nil {
		return core.DefaultOptimizationConfig(), fmt.Errorf("failed to read settings file: %w", err)
	}

	cfg, err := core.ParseOptimizationConfig(data)
	if err != nil {
		s.logger.Warn("Malformed settings file, invalid fields use defaults",
			zap.String("organization_id", organizationID),
			zap.String("path", path),
			zap.Error(err))
		return cfg, err
	}
	return cfg, nil
}

func (s *FileSource) path(organizationID string) (string, error) {
	id := strings.TrimSpace(organizationID)
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidOrganization, organizationID)
	}
	return filepath.Join(s.dir, id+".json"), nil
}
