// Package mesh runs the privacy-intent mesh: a single loop that merges
// broadcast requests from the application with listener, discovery and gossip
// events from the network.
package mesh

import (
	"context"
	"encoding/hex"
	"sync"

	"github.com/gammazero/chanqueue"
	logging "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
	"golang.org/x/xerrors"

	"github.com/justnobody/nobody-mesh/journal"
	"github.com/justnobody/nobody-mesh/mesh/classify"
	"github.com/justnobody/nobody-mesh/mesh/discovery"
	"github.com/justnobody/nobody-mesh/mesh/gossip"
	"github.com/justnobody/nobody-mesh/mesh/integrity"
	"github.com/justnobody/nobody-mesh/mesh/types"
	"github.com/justnobody/nobody-mesh/metrics"
)

var log = logging.Logger("mesh")

var (
	ErrQueueClosed    = xerrors.New("mesh loop has stopped")
	ErrAlreadyRunning = xerrors.New("mesh loop already started")
)

// Gossip is the part of the gossip channel the loop drives.
type Gossip interface {
	Publish(ctx context.Context, data []byte) error
	Next(ctx context.Context) (*gossip.Message, error)
	AddPeer(ctx context.Context, pi peer.AddrInfo) error
	RemovePeer(p peer.ID)
	ExplicitPeers() []peer.ID
}

var _ Gossip = (*gossip.Channel)(nil)

// outbound is a broadcast request. Raw payloads bypass the relay checks.
type outbound struct {
	intent *types.PrivacyIntent
	raw    []byte
}

type evtTypes struct {
	event   journal.EventType
	publish journal.EventType
}

// Node owns the mesh loop. The explicit peer set and the subscription are only
// touched from Run; the application talks to it through Enqueue and Events.
type Node struct {
	host   host.Host
	gossip Gossip
	disc   discovery.Service
	listen []ma.Multiaddr

	journal  journal.Journal
	evtTypes evtTypes

	lk      sync.Mutex
	started bool
	closed  bool
	intents *chanqueue.ChanQueue[outbound]

	events *chanqueue.ChanQueue[types.MeshEvent]
}

func NewNode(h host.Host, g Gossip, disc discovery.Service, listen []ma.Multiaddr, j journal.Journal) *Node {
	if j == nil {
		j = journal.NilJournal()
	}

	return &Node{
		host:    h,
		gossip:  g,
		disc:    disc,
		listen:  listen,
		journal: j,
		evtTypes: evtTypes{
			event:   j.RegisterEventType("mesh", "event"),
			publish: j.RegisterEventType("mesh", "publish"),
		},
		intents: chanqueue.New[outbound](),
		events:  chanqueue.New[types.MeshEvent](),
	}
}

func (n *Node) ID() peer.ID {
	return n.host.ID()
}

// Enqueue requests a broadcast of pi. It never blocks. Intents that fail the
// relay checks are dropped by the loop and only logged.
func (n *Node) Enqueue(pi types.PrivacyIntent) error {
	return n.push(outbound{intent: &pi})
}

// EnqueueRaw requests a broadcast of data as is, without an intent envelope.
func (n *Node) EnqueueRaw(data []byte) error {
	return n.push(outbound{raw: data})
}

func (n *Node) push(ob outbound) error {
	n.lk.Lock()
	defer n.lk.Unlock()
	if n.closed {
		return ErrQueueClosed
	}
	n.intents.In() <- ob
	return nil
}

// Events is the outward event stream. It is closed once Run returns.
func (n *Node) Events() <-chan types.MeshEvent {
	return n.events.Out()
}

// Run binds the listen addresses, starts discovery and processes events until
// ctx is cancelled. A bind or discovery failure is returned; publish failures
// and malformed messages never stop the loop.
func (n *Node) Run(ctx context.Context) error {
	n.lk.Lock()
	if n.started {
		n.lk.Unlock()
		return ErrAlreadyRunning
	}
	n.started = true
	n.lk.Unlock()

	defer n.shutdown()
	defer n.disc.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	addrSub, err := n.host.EventBus().Subscribe(new(event.EvtLocalAddressesUpdated))
	if err != nil {
		return xerrors.Errorf("subscribing to address updates: %w", err)
	}
	defer addrSub.Close() //nolint:errcheck

	if err := n.host.Network().Listen(n.listen...); err != nil {
		return xerrors.Errorf("binding listen addresses %v: %w", n.listen, err)
	}

	announced := make(map[string]struct{})
	n.announceAddrs(ctx, announced, n.host.Addrs())

	if err := n.disc.Start(ctx); err != nil {
		return xerrors.Errorf("starting discovery: %w", err)
	}

	inbound := make(chan *gossip.Message)
	go n.readMessages(ctx, inbound)

	discEvents := n.disc.Events()
	addrEvents := addrSub.Out()

	log.Infow("mesh loop started", "peer", n.host.ID())

	for {
		select {
		case <-ctx.Done():
			log.Infow("mesh loop stopping", "reason", ctx.Err())
			return nil

		case ob := <-n.intents.Out():
			n.handleOutbound(ctx, ob)

		case evt, ok := <-addrEvents:
			if !ok {
				addrEvents = nil
				continue
			}
			upd := evt.(event.EvtLocalAddressesUpdated)
			addrs := make([]ma.Multiaddr, 0, len(upd.Current))
			for _, a := range upd.Current {
				addrs = append(addrs, a.Address)
			}
			n.announceAddrs(ctx, announced, addrs)

		case de, ok := <-discEvents:
			if !ok {
				discEvents = nil
				continue
			}
			n.handleDiscovery(ctx, de)

		case msg, ok := <-inbound:
			if !ok {
				inbound = nil
				continue
			}
			n.handleMessage(ctx, msg)
		}
	}
}

// shutdown closes both queues. Requests still pending are dropped.
func (n *Node) shutdown() {
	n.lk.Lock()
	n.closed = true
	n.lk.Unlock()

	n.intents.Close()
	var dropped int
	for range n.intents.Out() {
		dropped++
	}
	if dropped > 0 {
		log.Warnw("dropped pending broadcasts on shutdown", "count", dropped)
	}

	n.events.Close()
}

func (n *Node) readMessages(ctx context.Context, out chan<- *gossip.Message) {
	defer close(out)
	for {
		msg, err := n.gossip.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Errorw("gossip subscription ended", "err", err)
			}
			return
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (n *Node) announceAddrs(ctx context.Context, announced map[string]struct{}, addrs []ma.Multiaddr) {
	for _, a := range addrs {
		s := a.String()
		if _, ok := announced[s]; ok {
			continue
		}
		announced[s] = struct{}{}
		log.Infow("listening", "address", s)
		n.emit(ctx, types.ListeningStarted{Address: s})
	}
}

func (n *Node) handleOutbound(ctx context.Context, ob outbound) {
	data, hops := ob.raw, 0
	if ob.intent != nil {
		if err := integrity.VerifyRelay(ob.intent); err != nil {
			log.Warnw("dropping outbound intent", "type", ob.intent.IntentType, "err", err)
			stats.Record(ctx, metrics.IntentRejected.M(1))
			return
		}

		b, err := ob.intent.Serialize()
		if err != nil {
			log.Errorw("serializing intent", "err", err)
			return
		}
		data, hops = b, ob.intent.Hops()
	}

	err := n.gossip.Publish(ctx, data)
	switch {
	case err == nil:
		stats.Record(ctx, metrics.IntentPublished.M(1))
		n.journal.RecordEvent(n.evtTypes.publish, func() interface{} {
			return PublishEvt{
				ID:   hex.EncodeToString([]byte(gossip.MessageID(data))),
				Hops: hops,
				Size: len(data),
				Raw:  ob.intent == nil,
			}
		})
	case xerrors.Is(err, gossip.ErrInsufficientPeers):
		// single node operation
		log.Debugw("no subscribed peers, broadcast stays local", "size", len(data))
		stats.Record(ctx, metrics.SingleNodePublish.M(1))
	case xerrors.Is(err, gossip.ErrDuplicateMessage):
		log.Debugw("skipping duplicate broadcast", "size", len(data))
		recordFailure(ctx, "duplicate")
	default:
		log.Warnw("broadcast failed", "err", err)
		recordFailure(ctx, "publish")
	}
}

func (n *Node) handleDiscovery(ctx context.Context, de discovery.Event) {
	switch de.Kind {
	case discovery.Discovered:
		for _, pi := range de.Peers {
			if err := n.gossip.AddPeer(ctx, pi); err != nil {
				log.Debugw("dialing discovered peer", "peer", pi.ID, "err", err)
			}
			stats.Record(ctx, metrics.PeerDiscovered.M(1))

			var addr string
			if len(pi.Addrs) > 0 {
				addr = pi.Addrs[0].String()
			}
			n.emit(ctx, types.PeerDiscovered{PeerID: pi.ID.String(), Address: addr})
		}
	case discovery.Expired:
		for _, pi := range de.Peers {
			n.gossip.RemovePeer(pi.ID)
			stats.Record(ctx, metrics.PeerExpired.M(1))
			log.Debugw("peer expired", "peer", pi.ID)
		}
	}
	stats.Record(ctx, metrics.ExplicitPeers.M(int64(len(n.gossip.ExplicitPeers()))))
}

func (n *Node) handleMessage(ctx context.Context, msg *gossip.Message) {
	stats.Record(ctx, metrics.MessageReceived.M(1))

	evt, ok := classify.Classify(msg.Data)
	if !ok {
		log.Debugw("dropping unclassified message", "from", msg.From, "size", len(msg.Data))
		stats.Record(ctx, metrics.MessageDropped.M(1))
		return
	}
	n.emit(ctx, evt)
}

func (n *Node) emit(ctx context.Context, evt types.MeshEvent) {
	if tctx, err := tag.New(ctx, tag.Upsert(metrics.EventType, evt.EventType())); err == nil {
		stats.Record(tctx, metrics.EventEmitted.M(1))
	}
	n.journal.RecordEvent(n.evtTypes.event, func() interface{} {
		return evt
	})
	n.events.In() <- evt
}

func recordFailure(ctx context.Context, reason string) {
	if tctx, err := tag.New(ctx, tag.Upsert(metrics.FailureType, reason)); err == nil {
		stats.Record(tctx, metrics.PublishFailure.M(1))
	}
}
