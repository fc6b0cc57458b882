package network

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"commuteos-backend/internal/domain/transit"
	appErrors "commuteos-backend/pkg/errors"

	"go.uber.org/zap"
)

// Loader produces a complete graph or an error. Loading is all-or-nothing.
type Loader interface {
	Load(ctx context.Context) (*transit.Graph, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (*transit.Graph, error)

func (f LoaderFunc) Load(ctx context.Context) (*transit.Graph, error) { return f(ctx) }

// FileLoader reads a JSON or YAML network document.
//
// If the file does not exist and AllowFallback is set, the built-in default
// network is returned and the substitution is logged with
// source=default_fallback. Any other read or validation failure is
// returned as an error.
type FileLoader struct {
	Path          string
	AllowFallback bool
	logger        *zap.Logger
}

// NewFileLoader creates a startup loader for path with the default network
// fallback enabled.
func NewFileLoader(path string, logger *zap.Logger) *FileLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileLoader{Path: path, AllowFallback: true, logger: logger}
}

// WithoutFallback returns a copy that fails on a missing file. Reloads use
// it so a moved or deleted file never replaces a running network.
func (l *FileLoader) WithoutFallback() *FileLoader {
	strict := *l
	strict.AllowFallback = false
	return &strict
}

// Load implements Loader.
func (l *FileLoader) Load(ctx context.Context) (*transit.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.logger.Info("Loading network from file", zap.String("file", l.Path))

	data, err := os.ReadFile(l.Path)
	if errors.Is(err, fs.ErrNotExist) {
		if !l.AllowFallback {
			return nil, appErrors.NewNotFound("network file " + l.Path + " not found")
		}
		g := transit.DefaultNetwork()
		l.logger.Warn("Network file not found, using default network",
			zap.String("file", l.Path),
			zap.String("source", g.Source()),
			zap.Int("stations", g.StationCount()),
			zap.Int("edges", g.EdgeCount()),
		)
		return g, nil
	}
	if err != nil {
		return nil, appErrors.NewInternal("read network file", err)
	}

	doc, err := Decode(data, FormatFromPath(l.Path))
	if err != nil {
		l.logger.Error("Invalid network file", zap.String("file", l.Path), zap.Error(err))
		return nil, err
	}

	g, err := doc.Build(transit.SourceFile)
	if err != nil {
		l.logger.Error("Failed to build network", zap.String("file", l.Path), zap.Error(err))
		return nil, err
	}

	l.logger.Info("Network loaded",
		zap.String("source", g.Source()),
		zap.Int("stations", g.StationCount()),
		zap.Int("edges", g.EdgeCount()),
	)
	return g, nil
}
