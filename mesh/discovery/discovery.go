package discovery

import (
	"context"
	"sync"

	"github.com/gammazero/chanqueue"
	logging "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"golang.org/x/xerrors"

	"github.com/justnobody/nobody-mesh/build"
	"github.com/justnobody/nobody-mesh/node/config"
)

var log = logging.Logger("discovery")

type Kind int

const (
	Discovered Kind = iota
	Expired
)

func (k Kind) String() string {
	switch k {
	case Discovered:
		return "discovered"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Event reports a batch of peers appearing on or disappearing from the local
// network. Expired events only carry peer ids.
type Event struct {
	Kind  Kind
	Peers []peer.AddrInfo
}

// Service is a local network discovery mechanism. Start is called once the
// host is listening; events are delivered in order on Events until Close.
type Service interface {
	Start(ctx context.Context) error
	Events() <-chan Event
	Close() error
}

// New builds the discovery backend selected in the config.
func New(cfg *config.Mesh, h host.Host) (Service, error) {
	switch cfg.Discovery.Backend {
	case config.DiscoveryZeroconf:
		name := cfg.Discovery.ServiceName
		if name == "" {
			name = build.ZeroconfServiceType
		}
		return NewZeroconf(h, name), nil
	case config.DiscoveryMdns:
		name := cfg.Discovery.ServiceName
		if name == "" {
			name = build.MdnsServiceName
		}
		return NewMdns(h, name), nil
	case config.DiscoveryStatic:
		return NewStatic(h.ID(), cfg.Discovery.StaticPeers)
	case config.DiscoveryNone:
		return NewStatic(h.ID(), nil)
	default:
		return nil, xerrors.Errorf("unknown discovery backend %q", cfg.Discovery.Backend)
	}
}

// eventQueue is the unbounded FIFO between a backend's callbacks and the
// consumer of Events. Pushes after close are dropped.
type eventQueue struct {
	lk     sync.Mutex
	closed bool
	q      *chanqueue.ChanQueue[Event]
}

func newEventQueue() *eventQueue {
	return &eventQueue{q: chanqueue.New[Event]()}
}

func (eq *eventQueue) push(evt Event) {
	if len(evt.Peers) == 0 {
		return
	}

	eq.lk.Lock()
	defer eq.lk.Unlock()
	if eq.closed {
		return
	}
	eq.q.In() <- evt
}

func (eq *eventQueue) out() <-chan Event {
	return eq.q.Out()
}

func (eq *eventQueue) close() {
	eq.lk.Lock()
	defer eq.lk.Unlock()
	if eq.closed {
		return
	}
	eq.closed = true
	eq.q.Close()
}
