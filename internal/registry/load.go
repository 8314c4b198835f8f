package registry

import (
	"context"
	"fmt"
	"os"

	"github.com/specialistvlad/ikflowgo/internal/ctxlog"
	"github.com/specialistvlad/ikflowgo/internal/fsutil"
	"gopkg.in/yaml.v3"
)

// Load reads descriptors from path, which may be a single YAML document or a
// directory searched recursively for .yaml and .yml files. All documents are
// merged; a model name declared twice is an error.
func Load(ctx context.Context, path string) (*Registry, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Registry loading descriptors...", "path", path)

	filePaths, err := fsutil.FindFilesByExtension(path, ".yaml", ".yml")
	if err != nil {
		return nil, fmt.Errorf("failed to locate registry documents: %w", err)
	}
	if len(filePaths) == 0 {
		logger.Warn("No registry documents found in path", "path", path)
	}
	logger.Debug("Found registry documents to load", "files", filePaths)

	reg := &Registry{entries: make(map[string]Entry)}
	var problems []string
	for _, filePath := range filePaths {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read registry document %s: %w", filePath, err)
		}

		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse registry document %s: %w", filePath, err)
		}

		for _, p := range reg.add(raw) {
			problems = append(problems, fmt.Sprintf("%s: %s", filePath, p))
		}
		logger.Debug("Loaded registry document", "file", filePath, "descriptors", len(raw))
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	logger.Info("Registry loaded successfully.", "descriptors", reg.Len())
	return reg, nil
}
