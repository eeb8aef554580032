package discovery

import (
	"context"
	"sync"

	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"go.uber.org/multierr"
	"golang.org/x/xerrors"
)

// MdnsService uses libp2p's mdns discovery. mdns itself never reports a peer
// as gone, so a discovered peer expires when its connection closes.
type MdnsService struct {
	h      host.Host
	name   string
	events *eventQueue

	svc mdns.Service
	sub event.Subscription

	lk    sync.Mutex
	known map[peer.ID]struct{}
}

var _ Service = (*MdnsService)(nil)

func NewMdns(h host.Host, name string) *MdnsService {
	return &MdnsService{
		h:      h,
		name:   name,
		events: newEventQueue(),
		known:  make(map[peer.ID]struct{}),
	}
}

func (m *MdnsService) Start(ctx context.Context) error {
	sub, err := m.h.EventBus().Subscribe(new(event.EvtPeerConnectednessChanged))
	if err != nil {
		return xerrors.Errorf("subscribing to connectedness events: %w", err)
	}
	m.sub = sub
	go m.watchDisconnects()

	m.svc = mdns.NewMdnsService(m.h, m.name, m)
	if err := m.svc.Start(); err != nil {
		_ = sub.Close()
		return xerrors.Errorf("starting mdns: %w", err)
	}

	log.Infow("mdns discovery started", "service", m.name)
	return nil
}

// HandlePeerFound implements mdns.Notifee. Repeated sightings of a peer that
// is still known are not reported again.
func (m *MdnsService) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == m.h.ID() {
		return
	}

	m.lk.Lock()
	_, seen := m.known[pi.ID]
	m.known[pi.ID] = struct{}{}
	m.lk.Unlock()

	if seen {
		return
	}
	m.events.push(Event{Kind: Discovered, Peers: []peer.AddrInfo{pi}})
}

func (m *MdnsService) watchDisconnects() {
	for evt := range m.sub.Out() {
		e, ok := evt.(event.EvtPeerConnectednessChanged)
		if !ok || e.Connectedness != network.NotConnected {
			continue
		}

		m.lk.Lock()
		_, seen := m.known[e.Peer]
		delete(m.known, e.Peer)
		m.lk.Unlock()

		if seen {
			m.events.push(Event{Kind: Expired, Peers: []peer.AddrInfo{{ID: e.Peer}}})
		}
	}
}

func (m *MdnsService) Events() <-chan Event {
	return m.events.out()
}

func (m *MdnsService) Close() error {
	defer m.events.close()

	var err error
	if m.svc != nil {
		err = multierr.Append(err, m.svc.Close())
	}
	if m.sub != nil {
		err = multierr.Append(err, m.sub.Close())
	}
	return err
}
