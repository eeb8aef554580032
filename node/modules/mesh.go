package modules

import (
	"context"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"go.uber.org/fx"

	"github.com/justnobody/nobody-mesh/journal"
	"github.com/justnobody/nobody-mesh/mesh"
	"github.com/justnobody/nobody-mesh/mesh/discovery"
	"github.com/justnobody/nobody-mesh/mesh/gossip"
	"github.com/justnobody/nobody-mesh/node/config"
	"github.com/justnobody/nobody-mesh/node/modules/lp2p"
)

func GossipChannel(lc fx.Lifecycle, h host.Host, ps *pubsub.PubSub, cfg *config.Mesh) (*gossip.Channel, error) {
	ch, err := gossip.NewChannel(h, ps, cfg.Pubsub.Topic, gossip.Options{
		MaxMessageSize:   cfg.Pubsub.MaxMessageSize,
		PublishCacheSize: cfg.Pubsub.PublishCacheSize,
		DuplicateTTL:     time.Duration(cfg.Pubsub.SeenMessagesTTL),
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			ch.Close()
			return nil
		},
	})

	log.Infow("joined gossip topic", "topic", ch.Topic())
	return ch, nil
}

func Discovery(cfg *config.Mesh, h host.Host) (discovery.Service, error) {
	return discovery.New(cfg, h)
}

func MeshNode(h host.Host, g mesh.Gossip, disc discovery.Service, cfg *config.Mesh, j journal.Journal) (*mesh.Node, error) {
	listen, err := lp2p.ListenAddrs(cfg)
	if err != nil {
		return nil, err
	}
	return mesh.NewNode(h, g, disc, listen, j), nil
}
