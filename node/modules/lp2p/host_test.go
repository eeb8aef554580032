package lp2p

import (
	"context"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"

	"github.com/justnobody/nobody-mesh/build"
	"github.com/justnobody/nobody-mesh/mesh/identity"
	"github.com/justnobody/nobody-mesh/node/config"
	"github.com/justnobody/nobody-mesh/node/modules/helpers"
)

func TestHostDoesNotListen(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := config.DefaultMesh()
	id := identity.New()

	h, err := Host(lc, id, cfg)
	require.NoError(t, err)
	require.Equal(t, id.ID(), h.ID())
	require.Empty(t, h.Network().ListenAddresses())

	ps, err := GossipSub(helpers.MetricsCtx(context.Background()), lc, h, cfg)
	require.NoError(t, err)

	topic, err := ps.Join(build.IntentsTopic)
	require.NoError(t, err)
	require.Empty(t, topic.ListPeers())
	require.NoError(t, topic.Close())

	lc.RequireStart()
	lc.RequireStop()
}

func TestListenAddrs(t *testing.T) {
	cfg := config.DefaultMesh()
	addrs, err := ListenAddrs(cfg)
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	require.Equal(t, "/ip4/0.0.0.0/tcp/0", addrs[0].String())

	cfg.Libp2p.ListenAddresses = []string{"/ip4/127.0.0.1/tcp/0", "not-a-multiaddr"}
	_, err = ListenAddrs(cfg)
	require.Error(t, err)
}

func TestIdleConnectionsKeptBelowHighWater(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := config.DefaultMesh()
	cfg.Libp2p.IdleConnTimeout = config.Duration(50 * time.Millisecond)
	cfg.Libp2p.ConnMgrLow = 1
	cfg.Libp2p.ConnMgrHigh = 4

	a, err := Host(lc, identity.New(), cfg)
	require.NoError(t, err)
	b, err := Host(lc, identity.New(), cfg)
	require.NoError(t, err)
	lc.RequireStart()
	defer lc.RequireStop()

	cfg.Libp2p.ListenAddresses = []string{"/ip4/127.0.0.1/tcp/0"}
	listen, err := ListenAddrs(cfg)
	require.NoError(t, err)
	require.NoError(t, a.Network().Listen(listen...))

	require.NoError(t, b.Connect(context.Background(), peer.AddrInfo{ID: a.ID(), Addrs: a.Addrs()}))

	// well past the grace period, but never above ConnMgrHigh
	time.Sleep(500 * time.Millisecond)
	require.Equal(t, network.Connected, b.Network().Connectedness(a.ID()))
	require.Equal(t, network.Connected, a.Network().Connectedness(b.ID()))
}
