// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zachsents/minus-sub000/pkg/persistence"
	"github.com/zachsents/minus-sub000/pkg/persistence/file"
	"github.com/zachsents/minus-sub000/pkg/persistence/postgresql"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrRunnerURLRequired   = errors.New("runner URL is required")
)

// NewPersistence picks the store from the scheme of databaseURL. postgres:// and
// postgresql:// select PostgreSQL, file:// or a bare path selects the file store.
//
// nolint:ireturn
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider, rest := parsePersistenceProvider(databaseURL)

	switch provider {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}

		return p, nil
	case "file", "":
		if rest == "" {
			return nil, fmt.Errorf("%w: empty file path", ErrUnsupportedProvider)
		}

		return file.NewPersistence(rest), nil
	default:
		return nil, fmt.Errorf("%w: persistence %q", ErrUnsupportedProvider, provider)
	}
}

func parsePersistenceProvider(databaseURL string) (string, string) {
	provider, rest, found := strings.Cut(databaseURL, "://")
	if !found {
		return "", databaseURL
	}

	return provider, rest
}
