package modules

import (
	"context"

	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
	"go.uber.org/fx"
	"golang.org/x/xerrors"

	"github.com/justnobody/nobody-mesh/build"
	"github.com/justnobody/nobody-mesh/journal"
	"github.com/justnobody/nobody-mesh/journal/fsjournal"
	"github.com/justnobody/nobody-mesh/metrics"
	"github.com/justnobody/nobody-mesh/node/config"
	"github.com/justnobody/nobody-mesh/node/modules/helpers"
)

var log = logging.Logger("modules")

// DisabledEvents merges the journal events disabled in the environment with
// the ones disabled in the config.
func DisabledEvents(cfg *config.Mesh) (journal.DisabledEvents, error) {
	fromCfg, err := journal.ParseDisabledEvents(cfg.Journal.DisabledEvents)
	if err != nil {
		return nil, xerrors.Errorf("parsing Journal.DisabledEvents: %w", err)
	}
	return append(journal.EnvDisabledEvents(), fromCfg...), nil
}

// OpenFilesystemJournal opens the event journal under Journal.Path.
func OpenFilesystemJournal(cfg *config.Mesh, lc fx.Lifecycle, disabled journal.DisabledEvents) (journal.Journal, error) {
	jrnl, err := fsjournal.OpenFSJournal(cfg.Journal.Path, disabled)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error { return jrnl.Close() },
	})

	log.Infow("journal opened", "path", cfg.Journal.Path)
	return jrnl, nil
}

// RecordInfo tags the info gauge with the running version.
func RecordInfo(mctx helpers.MetricsCtx) error {
	ctx, err := tag.New(mctx,
		tag.Insert(metrics.Version, build.BuildVersion),
		tag.Insert(metrics.Commit, build.CurrentCommit),
	)
	if err != nil {
		return xerrors.Errorf("tagging info metric: %w", err)
	}
	stats.Record(ctx, metrics.MeshInfo.M(1))
	return nil
}
