// Package gossip is the publish-subscribe channel of the mesh: one topic,
// strictly signed messages and content-addressed deduplication.
package gossip

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	logging "github.com/ipfs/go-log/v2"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"golang.org/x/xerrors"
)

var log = logging.Logger("gossip")

var (
	// ErrInsufficientPeers is returned when no subscribed peer is known for
	// the topic. Nothing was sent.
	ErrInsufficientPeers = xerrors.New("insufficient peers")
	// ErrDuplicateMessage is returned when the same payload was already
	// published or received by this node within the duplicate window. Pubsub
	// would otherwise drop it silently as already seen.
	ErrDuplicateMessage  = xerrors.New("duplicate message")
	ErrAlreadySubscribed = xerrors.New("already subscribed to a topic")
)

// protectTag marks connections to explicit peers in the connection manager.
const protectTag = "mesh-explicit"

type Options struct {
	// MaxMessageSize bounds accepted payloads; zero disables the bound.
	MaxMessageSize int
	// PublishCacheSize is the number of seen ids remembered for duplicate
	// detection.
	PublishCacheSize int
	// DuplicateTTL is how long a seen id is remembered. It should match the
	// pubsub seen-messages TTL; zero means pubsub.TimeCacheDuration.
	DuplicateTTL time.Duration
}

// Message is an authenticated payload received from a peer.
type Message struct {
	ID           string
	From         peer.ID
	ReceivedFrom peer.ID
	Data         []byte
}

// Channel wraps a single pubsub topic. Only the mesh loop drives it; the
// explicit peer set is not safe for concurrent mutation.
type Channel struct {
	host host.Host
	ps   *pubsub.PubSub
	opts Options

	name  string
	topic *pubsub.Topic
	sub   *pubsub.Subscription

	explicit map[peer.ID]struct{}
	// seen holds ids of payloads published locally or accepted from peers.
	seen *expirable.LRU[string, struct{}]
}

func NewChannel(h host.Host, ps *pubsub.PubSub, topic string, opts Options) (*Channel, error) {
	if opts.PublishCacheSize <= 0 {
		opts.PublishCacheSize = 1024
	}
	if opts.DuplicateTTL <= 0 {
		opts.DuplicateTTL = pubsub.TimeCacheDuration
	}

	c := &Channel{
		host:     h,
		ps:       ps,
		opts:     opts,
		explicit: make(map[peer.ID]struct{}),
		seen:     expirable.NewLRU[string, struct{}](opts.PublishCacheSize, nil, opts.DuplicateTTL),
	}

	if err := c.Subscribe(topic); err != nil {
		return nil, err
	}
	return c, nil
}

// Subscribe joins topic. The channel carries exactly one topic for its whole
// lifetime; subscribing again to the same name is a no-op.
func (c *Channel) Subscribe(topic string) error {
	if c.topic != nil {
		if c.name == topic {
			return nil
		}
		return xerrors.Errorf("subscribing to %q while on %q: %w", topic, c.name, ErrAlreadySubscribed)
	}

	if err := c.ps.RegisterTopicValidator(topic, c.validate); err != nil {
		return xerrors.Errorf("registering validator for %s: %w", topic, err)
	}

	t, err := c.ps.Join(topic)
	if err != nil {
		return xerrors.Errorf("joining topic %s: %w", topic, err)
	}

	sub, err := t.Subscribe()
	if err != nil {
		_ = t.Close()
		return xerrors.Errorf("subscribing to topic %s: %w", topic, err)
	}

	c.name, c.topic, c.sub = topic, t, sub
	return nil
}

func (c *Channel) Topic() string {
	return c.name
}

// validate runs after pubsub has checked the signature. Accepted payloads are
// recorded as seen, since pubsub will drop any later copy of them.
func (c *Channel) validate(ctx context.Context, pid peer.ID, msg *pubsub.Message) pubsub.ValidationResult {
	switch {
	case len(msg.Data) == 0:
		return pubsub.ValidationReject
	case c.opts.MaxMessageSize > 0 && len(msg.Data) > c.opts.MaxMessageSize:
		log.Debugw("rejecting oversized message", "peer", pid, "size", len(msg.Data))
		return pubsub.ValidationReject
	}
	c.seen.Add(MessageID(msg.Data), struct{}{})
	return pubsub.ValidationAccept
}

// Publish signs and sends data to the topic's peers.
func (c *Channel) Publish(ctx context.Context, data []byte) error {
	id := MessageID(data)
	// Peek, unlike Contains, ignores expired entries.
	if _, ok := c.seen.Peek(id); ok {
		return ErrDuplicateMessage
	}

	if len(c.topic.ListPeers()) == 0 {
		return ErrInsufficientPeers
	}

	if err := c.topic.Publish(ctx, data); err != nil {
		return xerrors.Errorf("publishing to %s: %w", c.name, err)
	}

	c.seen.Add(id, struct{}{})
	log.Debugw("published message", "id", hex.EncodeToString([]byte(id)), "size", len(data))
	return nil
}

// Next blocks until a message published by another peer arrives.
func (c *Channel) Next(ctx context.Context) (*Message, error) {
	self := c.host.ID()
	for {
		msg, err := c.sub.Next(ctx)
		if err != nil {
			return nil, err
		}
		if msg.ReceivedFrom == self {
			continue
		}
		return &Message{
			ID:           msg.ID,
			From:         msg.GetFrom(),
			ReceivedFrom: msg.ReceivedFrom,
			Data:         msg.Data,
		}, nil
	}
}

// AddPeer places pi in the explicit peer set, shields its connection from
// trimming and dials it.
func (c *Channel) AddPeer(ctx context.Context, pi peer.AddrInfo) error {
	if pi.ID == c.host.ID() {
		return nil
	}

	c.explicit[pi.ID] = struct{}{}
	c.host.ConnManager().Protect(pi.ID, protectTag)
	c.host.Peerstore().AddAddrs(pi.ID, pi.Addrs, peerstore.TempAddrTTL)

	if err := c.host.Connect(ctx, pi); err != nil {
		return xerrors.Errorf("connecting to %s: %w", pi.ID, err)
	}
	return nil
}

// RemovePeer drops p from the explicit peer set. Existing connections are left
// to the connection manager.
func (c *Channel) RemovePeer(p peer.ID) {
	if _, ok := c.explicit[p]; !ok {
		return
	}
	delete(c.explicit, p)
	c.host.ConnManager().Unprotect(p, protectTag)
}

func (c *Channel) ExplicitPeers() []peer.ID {
	out := make([]peer.ID, 0, len(c.explicit))
	for p := range c.explicit {
		out = append(out, p)
	}
	return out
}

// Close cancels the subscription. The topic handle stays joined until the
// pubsub instance shuts down.
func (c *Channel) Close() {
	if c.sub != nil {
		c.sub.Cancel()
	}
}
