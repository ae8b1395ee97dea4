package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/ppiankov/xsync/internal/config"
	"github.com/ppiankov/xsync/internal/connector"
	"github.com/ppiankov/xsync/internal/source"
)

// loadConfig reads the config directory and builds the logger it describes.
// Logs go to w so stdout stays free for command output.
func loadConfig(w io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(w, cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openConnector creates an initialized connector for cfg.
func openConnector(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*connector.Connector, error) {
	limiter := rate.NewLimiter(rate.Limit(cfg.API.RequestsPerSecond), 1)

	c := connector.New(
		connector.XFactory(
			source.WithBaseURL(cfg.API.BaseURL),
			source.WithLimiter(limiter),
			source.WithMaxPages(cfg.API.MaxPages),
		),
		connector.WithLogger(logger),
	)

	creds := map[string]string{connector.CredentialBearerToken: cfg.API.Token}
	if err := c.Init(ctx, creds, cfg.Options()); err != nil {
		return nil, fmt.Errorf("init connector (set %s): %w", cfg.API.TokenEnv, err)
	}
	return c, nil
}
