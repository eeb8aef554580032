package lp2p

import (
	"context"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/libp2p/go-libp2p/p2p/security/noise"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/fx"
	"golang.org/x/xerrors"

	"github.com/justnobody/nobody-mesh/build"
	"github.com/justnobody/nobody-mesh/mesh/identity"
	"github.com/justnobody/nobody-mesh/node/config"
)

var log = logging.Logger("lp2p")

// Host builds the libp2p host for the mesh. It does not listen on anything;
// binding is the first step of the mesh loop so that a bind failure surfaces
// there.
func Host(lc fx.Lifecycle, id *identity.Identity, cfg *config.Mesh) (host.Host, error) {
	cm, err := connmgr.NewConnManager(
		int(cfg.Libp2p.ConnMgrLow),
		int(cfg.Libp2p.ConnMgrHigh),
		connmgr.WithGracePeriod(time.Duration(cfg.Libp2p.IdleConnTimeout)),
	)
	if err != nil {
		return nil, xerrors.Errorf("creating connection manager: %w", err)
	}

	opts := []libp2p.Option{
		libp2p.Identity(id.PrivKey()),
		libp2p.NoListenAddrs,
		libp2p.Transport(tcp.NewTCPTransport),
		libp2p.Security(noise.ID, noise.New),
		makeSmuxTransportOption(),
		libp2p.ConnectionManager(cm),
		libp2p.Ping(true),
		libp2p.UserAgent(build.UserAgent()),
	}
	opts = append(opts, NoRelay()...)

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, xerrors.Errorf("creating libp2p host: %w", err)
	}

	log.Infow("ephemeral identity", "peer", h.ID())

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return h.Close()
		},
	})

	return h, nil
}

// ListenAddrs parses the configured listen multiaddrs.
func ListenAddrs(cfg *config.Mesh) ([]ma.Multiaddr, error) {
	out := make([]ma.Multiaddr, 0, len(cfg.Libp2p.ListenAddresses))
	for _, s := range cfg.Libp2p.ListenAddresses {
		a, err := ma.NewMultiaddr(s)
		if err != nil {
			return nil, xerrors.Errorf("parsing listen address %q: %w", s, err)
		}
		out = append(out, a)
	}
	return out, nil
}
