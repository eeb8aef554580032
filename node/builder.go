package node

import (
	"context"

	logging "github.com/ipfs/go-log/v2"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"go.uber.org/fx"
	"golang.org/x/xerrors"

	"github.com/justnobody/nobody-mesh/journal"
	"github.com/justnobody/nobody-mesh/mesh"
	"github.com/justnobody/nobody-mesh/mesh/discovery"
	"github.com/justnobody/nobody-mesh/mesh/gossip"
	"github.com/justnobody/nobody-mesh/mesh/identity"
	"github.com/justnobody/nobody-mesh/node/config"
	"github.com/justnobody/nobody-mesh/node/modules"
	"github.com/justnobody/nobody-mesh/node/modules/helpers"
	"github.com/justnobody/nobody-mesh/node/modules/lp2p"
)

var log = logging.Logger("builder")

type invoke int

// Invokes are called in the order they are defined.
//
//nolint:golint
const (
	// InitJournalKey at position 0 opens the journal before anything can
	// record to it.
	InitJournalKey = invoke(iota)

	RecordInfoKey

	ExtractMeshKey

	_nInvokes // keep this last
)

type Settings struct {
	// modules is a map of constructors for DI
	//
	// In most cases the index will be a reflect. Type of element returned by
	// the constructor.
	modules map[interface{}]fx.Option

	// invokes are separate from modules as they can't be referenced by return
	// type, and must be applied in correct order
	invokes []fx.Option

	Config bool // Config option applied
}

func defaults() []Option {
	return []Option{
		Override(new(helpers.MetricsCtx), context.Background),

		Override(new(journal.DisabledEvents), modules.DisabledEvents),
		Override(new(journal.Journal), modules.OpenFilesystemJournal),
		Override(InitJournalKey, func(journal.Journal) {}),

		Override(RecordInfoKey, modules.RecordInfo),
	}
}

func libp2p() Option {
	return Options(
		Override(new(*identity.Identity), identity.New),
		Override(new(host.Host), lp2p.Host),
		Override(new(*pubsub.PubSub), lp2p.GossipSub),
	)
}

func meshNode() Option {
	return Options(
		Override(new(*gossip.Channel), modules.GossipChannel),
		Override(new(mesh.Gossip), From(new(*gossip.Channel))),
		Override(new(discovery.Service), modules.Discovery),
		Override(new(*mesh.Node), modules.MeshNode),
	)
}

// Config sets up the node from a mesh configuration.
func Config(cfg *config.Mesh) Option {
	if cfg == nil {
		return Error(xerrors.New("node config is nil"))
	}

	return Options(
		func(s *Settings) error { s.Config = true; return nil },
		Override(new(*config.Mesh), cfg),

		// an empty journal path disables journaling
		If(cfg.Journal.Path == "",
			Override(new(journal.Journal), journal.NilJournal),
			Unset(new(journal.DisabledEvents)),
		),
	)
}

// Mesh extracts the constructed mesh node. The caller runs its loop.
func Mesh(out **mesh.Node) Option {
	return Override(ExtractMeshKey, func(n *mesh.Node) {
		*out = n
	})
}

type StopFunc func(context.Context) error

// New builds a mesh node. Nothing listens until the node's loop is run.
func New(ctx context.Context, opts ...Option) (StopFunc, error) {
	settings := Settings{
		modules: map[interface{}]fx.Option{},
		invokes: make([]fx.Option, _nInvokes),
	}

	// apply module options in the right order
	if err := Options(Options(defaults()...), libp2p(), meshNode(), Options(opts...))(&settings); err != nil {
		return nil, xerrors.Errorf("applying node options failed: %w", err)
	}

	if !settings.Config {
		return nil, xerrors.New("node config not set")
	}

	// gather constructors for fx.Options
	ctors := make([]fx.Option, 0, len(settings.modules))
	for _, opt := range settings.modules {
		ctors = append(ctors, opt)
	}

	// fill holes in invokes for use in fx.Options
	for i, opt := range settings.invokes {
		if opt == nil {
			settings.invokes[i] = fx.Options()
		}
	}

	app := fx.New(
		fx.Options(ctors...),
		fx.Options(settings.invokes...),

		fx.NopLogger,
	)

	if err := app.Start(ctx); err != nil {
		// comment fx.NopLogger few lines above for easier debugging
		return nil, xerrors.Errorf("starting node: %w", err)
	}

	log.Debug("node constructed")
	return app.Stop, nil
}
