package lp2p

import (
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"go.uber.org/fx"

	"github.com/justnobody/nobody-mesh/mesh/gossip"
	"github.com/justnobody/nobody-mesh/node/config"
	"github.com/justnobody/nobody-mesh/node/modules/helpers"
)

// rpcOverhead leaves room for the signed envelope around a maximum size payload.
const rpcOverhead = 64 << 10

func GossipSub(mctx helpers.MetricsCtx, lc fx.Lifecycle, h host.Host, cfg *config.Mesh) (*pubsub.PubSub, error) {
	params := pubsub.DefaultGossipSubParams()
	params.HeartbeatInterval = time.Duration(cfg.Pubsub.HeartbeatInterval)

	opts := []pubsub.Option{
		pubsub.WithGossipSubParams(params),
		// unsigned or mis-signed messages never reach the application
		pubsub.WithMessageSignaturePolicy(pubsub.StrictSign),
		pubsub.WithMessageIdFn(gossip.HashMsgId),
		pubsub.WithEventTracer(newMeshTracer(mctx)),
	}
	if ttl := time.Duration(cfg.Pubsub.SeenMessagesTTL); ttl > 0 {
		opts = append(opts, pubsub.WithSeenMessagesTTL(ttl))
	}
	if cfg.Pubsub.MaxMessageSize > 0 {
		opts = append(opts, pubsub.WithMaxMessageSize(cfg.Pubsub.MaxMessageSize+rpcOverhead))
	}

	return pubsub.NewGossipSub(helpers.LifecycleCtx(mctx, lc), h, opts...)
}
