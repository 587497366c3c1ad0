package cmd

import (
	"fmt"
	"log/slog"

	"github.com/zachsents/minus-sub000/pkg/registry"
)

// NewRegistry loads the node definition catalogs. Empty paths select the embedded ones.
func NewRegistry(logger *slog.Logger, basePath, overlayPath string) (*registry.Registry, error) {
	reg, err := registry.Load(logger, basePath, overlayPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load node definitions: %w", err)
	}

	logger.Info("Loaded node definitions", "count", len(reg.Definitions()))

	return reg, nil
}
