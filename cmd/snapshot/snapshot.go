package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/xela07ax/trust-center/internal/connectors"
	"github.com/xela07ax/trust-center/internal/domain"
	"github.com/xela07ax/trust-center/internal/engine"
	"github.com/xela07ax/trust-center/internal/infra"
)

const (
	formatJSON    = "json"
	formatSummary = "summary"
)

var errUnknownFormat = errors.New("unknown output format")

func snapshotAction(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	if format != formatJSON && format != formatSummary {
		return fmt.Errorf("%w: %q", errUnknownFormat, format)
	}

	overrides := map[string]any{"logger.level": cmd.String("log-level")}
	if cmd.IsSet("dir") {
		overrides["source.dir"] = cmd.String("dir")
	}
	if cmd.IsSet("base-url") {
		overrides["source.base_url"] = cmd.String("base-url")
	}
	cfg, err := infra.LoadConfigOverrides(cmd.String("config"), overrides)
	if err != nil {
		return err
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync()

	snap, err := loadOnce(ctx, cfg, logger)
	if err != nil {
		return err
	}

	out := cmd.Root().Writer
	if format == formatSummary {
		writeSummary(out, snap)
	} else if err := writeJSON(out, snap, cmd.Bool("pretty")); err != nil {
		return err
	}

	if cmd.IsSet("fail-under") && snap.Metrics.Score < cmd.Float("fail-under") {
		return cli.Exit(fmt.Sprintf("compliance score %.1f is below %.1f", snap.Metrics.Score, cmd.Float("fail-under")), 2)
	}
	return nil
}

func loadOnce(ctx context.Context, cfg *infra.Config, logger *zap.Logger) (*domain.Snapshot, error) {
	raw, err := connectors.FromConfig(cfg.Source)
	if err != nil {
		return nil, err
	}
	source := engine.NewReliableSource(raw, engine.ReliabilityConfig{
		Attempts:       cfg.Source.RetryAttempts,
		RequestTimeout: cfg.Source.RequestTimeout,
		RateLimit:      cfg.Source.RateLimit,
		RateBurst:      cfg.Source.RateBurst,
		BreakerTimeout: cfg.Source.CBTimeout,
		BreakerFails:   cfg.Source.CBFailures,
	}, nil, logger)

	return engine.NewAggregator(source, logger).Load(ctx, engine.TriggerManual)
}

func writeJSON(w io.Writer, snap *domain.Snapshot, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(snap)
}

func writeSummary(w io.Writer, snap *domain.Snapshot) {
	m := snap.Metrics
	fmt.Fprintf(w, "Compliance score: %.1f%% (trend: %s)\n", m.Score, snap.Trend)
	fmt.Fprintf(w, "Passed: %d  Failed: %d  Warning: %d  Info: %d  Unknown: %d  Total: %d\n",
		m.PassedCount, m.FailedCount, m.WarningCount, m.InfoCount, m.UnknownCount, m.TotalCount)
	if snap.Metadata.ImpactLevel != "" || snap.Metadata.ValidationDate != "" {
		fmt.Fprintf(w, "Impact level: %s  Validated: %s\n", snap.Metadata.ImpactLevel, snap.Metadata.ValidationDate)
	}
	if len(snap.DegradedSources) > 0 {
		fmt.Fprintf(w, "Degraded sources: %s\n", strings.Join(snap.DegradedSources, ", "))
	}

	var failing []domain.ValidationRecord
	for _, r := range snap.Records {
		if r.Status == domain.StatusFailed {
			failing = append(failing, r)
		}
	}
	if len(failing) == 0 {
		return
	}
	fmt.Fprintf(w, "\nFailing KSIs (%d):\n", len(failing))
	for _, r := range failing {
		fmt.Fprintf(w, "  %-16s %s\n", r.ID, r.Reason)
	}
}
