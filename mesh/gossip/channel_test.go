package gossip

import (
	"context"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"

	"github.com/justnobody/nobody-mesh/build"
)

func newTestChannel(t *testing.T, ctx context.Context, opts Options) (host.Host, *Channel) {
	h, err := libp2p.New(libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	ps, err := pubsub.NewGossipSub(ctx, h,
		pubsub.WithMessageSignaturePolicy(pubsub.StrictSign),
		pubsub.WithMessageIdFn(HashMsgId),
	)
	require.NoError(t, err)

	c, err := NewChannel(h, ps, build.IntentsTopic, opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	return h, c
}

func connect(t *testing.T, ctx context.Context, a *Channel, bh host.Host, b *Channel) {
	require.NoError(t, a.AddPeer(ctx, peer.AddrInfo{ID: bh.ID(), Addrs: bh.Addrs()}))

	require.Eventually(t, func() bool {
		return len(a.topic.ListPeers()) > 0 && len(b.topic.ListPeers()) > 0
	}, 10*time.Second, 20*time.Millisecond)

	// give the heartbeat time to graft the mesh
	time.Sleep(2 * time.Second)
}

func next(t *testing.T, ctx context.Context, c *Channel) *Message {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	msg, err := c.Next(ctx)
	require.NoError(t, err)
	return msg
}

func TestPublishWithoutPeers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, c := newTestChannel(t, ctx, Options{})
	require.ErrorIs(t, c.Publish(ctx, []byte("hello")), ErrInsufficientPeers)

	// nothing was sent, so the payload is not a duplicate
	require.ErrorIs(t, c.Publish(ctx, []byte("hello")), ErrInsufficientPeers)
}

func TestPublishReceive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ah, a := newTestChannel(t, ctx, Options{})
	bh, b := newTestChannel(t, ctx, Options{})
	connect(t, ctx, a, bh, b)

	require.Equal(t, []peer.ID{bh.ID()}, a.ExplicitPeers())

	require.NoError(t, a.Publish(ctx, []byte("from a")))
	require.ErrorIs(t, a.Publish(ctx, []byte("from a")), ErrDuplicateMessage)
	require.NoError(t, b.Publish(ctx, []byte("from b")))

	msg := next(t, ctx, b)
	require.Equal(t, []byte("from a"), msg.Data)
	require.Equal(t, ah.ID(), msg.From)
	require.Equal(t, MessageID([]byte("from a")), msg.ID)

	// a never sees its own publication
	msg = next(t, ctx, a)
	require.Equal(t, []byte("from b"), msg.Data)
	require.Equal(t, bh.ID(), msg.ReceivedFrom)

	a.RemovePeer(bh.ID())
	require.Empty(t, a.ExplicitPeers())
}

func TestOversizedMessagesRejected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, a := newTestChannel(t, ctx, Options{})
	bh, b := newTestChannel(t, ctx, Options{MaxMessageSize: 8})
	connect(t, ctx, a, bh, b)

	require.NoError(t, a.Publish(ctx, []byte("this payload is too large")))
	require.NoError(t, a.Publish(ctx, []byte("small")))

	msg := next(t, ctx, b)
	require.Equal(t, []byte("small"), msg.Data)

	// the local validator applies to our own publications too
	err := b.Publish(ctx, []byte("another payload over the limit"))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDuplicateMessage)
}

func TestPublishReceivedPayloadIsDuplicate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, a := newTestChannel(t, ctx, Options{})
	bh, b := newTestChannel(t, ctx, Options{})
	connect(t, ctx, a, bh, b)

	require.NoError(t, a.Publish(ctx, []byte("buy 10 units")))
	msg := next(t, ctx, b)
	require.Equal(t, []byte("buy 10 units"), msg.Data)

	// pubsub would drop the copy as already seen, so it must not look sent
	require.ErrorIs(t, b.Publish(ctx, []byte("buy 10 units")), ErrDuplicateMessage)
	require.NoError(t, b.Publish(ctx, []byte("buy 11 units")))
}

func TestDuplicateWindowExpires(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ttl := 500 * time.Millisecond
	opts := Options{DuplicateTTL: ttl}
	_, a := newTestChannel(t, ctx, opts)
	bh, b := newTestChannel(t, ctx, opts)
	connect(t, ctx, a, bh, b)

	require.NoError(t, a.Publish(ctx, []byte("sell 3 widgets")))
	require.ErrorIs(t, a.Publish(ctx, []byte("sell 3 widgets")), ErrDuplicateMessage)
	require.Equal(t, []byte("sell 3 widgets"), next(t, ctx, b).Data)
	require.ErrorIs(t, b.Publish(ctx, []byte("sell 3 widgets")), ErrDuplicateMessage)

	time.Sleep(2 * ttl)

	// the id is forgotten on both sides once the window has passed
	require.NoError(t, a.Publish(ctx, []byte("sell 3 widgets")))
	require.NoError(t, b.Publish(ctx, []byte("sell 3 widgets")))
}

func TestDuplicateTTLDefaultsToSeenCache(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, c := newTestChannel(t, ctx, Options{})
	require.Equal(t, pubsub.TimeCacheDuration, c.opts.DuplicateTTL)
	require.Equal(t, 1024, c.opts.PublishCacheSize)
}

func TestSingleTopic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, c := newTestChannel(t, ctx, Options{})
	require.NoError(t, c.Subscribe(build.IntentsTopic))
	require.ErrorIs(t, c.Subscribe("another-topic"), ErrAlreadySubscribed)
	require.Equal(t, build.IntentsTopic, c.Topic())
}

func TestMessageIDIsContentAddressed(t *testing.T) {
	require.Equal(t, MessageID([]byte("x")), MessageID([]byte("x")))
	require.NotEqual(t, MessageID([]byte("x")), MessageID([]byte("y")))
	require.Len(t, MessageID(nil), 32)
}
