// File: cmd/components.go
package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wedcheck/internal/condition"
	"github.com/xkilldash9x/wedcheck/internal/config"
	"github.com/xkilldash9x/wedcheck/internal/network"
	"github.com/xkilldash9x/wedcheck/internal/normalize"
	"github.com/xkilldash9x/wedcheck/internal/savelog"
	"github.com/xkilldash9x/wedcheck/internal/scenario"
	"github.com/xkilldash9x/wedcheck/internal/store"
	"github.com/xkilldash9x/wedcheck/internal/verify"
)

func newHTTPClient(cfg *config.Config, logger *zap.Logger) *http.Client {
	clientCfg := network.NewDefaultClientConfig()
	clientCfg.IgnoreTLSErrors = cfg.Network().IgnoreTLSErrors
	if t := cfg.Network().Timeout; t > 0 {
		clientCfg.RequestTimeout = t
	}
	clientCfg.Logger = logger
	return network.NewClient(clientCfg)
}

func newEvaluator(cfg *config.Config, logger *zap.Logger) *condition.Evaluator {
	return condition.New(condition.Options{
		Timeout:      cfg.EffectivePollTimeout(),
		Interval:     cfg.Poll().Interval,
		StrictErrors: cfg.Poll().StrictErrors,
	}, logger)
}

// loadSuite reads the configured scenario file. A missing file setting
// yields an empty suite.
func loadSuite(cfg *config.Config) (*scenario.Suite, error) {
	path := cfg.Scenarios().File
	if path == "" {
		return &scenario.Suite{}, nil
	}
	suite, err := scenario.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := suite.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario file %s: %w", path, err)
	}
	return suite, nil
}

func newVerifier(cfg *config.Config, client *http.Client, suite *scenario.Suite, eval *condition.Evaluator, logger *zap.Logger) (*verify.Verifier, error) {
	table, err := suite.Table(scenario.Builtin())
	if err != nil {
		return nil, err
	}
	saveURL, err := cfg.Server().SaveURL()
	if err != nil {
		return nil, err
	}
	fetcher := savelog.NewFetcher(client, saveURL, cfg.Network().RequestsPerSecond, logger)
	identity := normalize.IdentityForBrowser(cfg.Browser().Name)
	return verify.New(fetcher, table, identity, eval, logger), nil
}

// openStore connects to the results database. It returns a nil store when
// no database is configured.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*store.Store, func(), error) {
	url := cfg.Database().URL
	if url == "" {
		return nil, func() {}, nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	s, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}
