package discovery

import (
	"context"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"golang.org/x/xerrors"
)

// StaticService announces a fixed peer list once on Start. Further peers can
// be announced or expired by hand, which makes it the deterministic backend
// for tests and fixed deployments.
type StaticService struct {
	self   peer.ID
	peers  []peer.AddrInfo
	events *eventQueue
}

var _ Service = (*StaticService)(nil)

func NewStatic(self peer.ID, addrs []string) (*StaticService, error) {
	maddrs := make([]ma.Multiaddr, 0, len(addrs))
	for _, s := range addrs {
		a, err := ma.NewMultiaddr(s)
		if err != nil {
			return nil, xerrors.Errorf("parsing static peer %q: %w", s, err)
		}
		maddrs = append(maddrs, a)
	}

	peers, err := peer.AddrInfosFromP2pAddrs(maddrs...)
	if err != nil {
		return nil, xerrors.Errorf("static peers: %w", err)
	}

	return &StaticService{
		self:   self,
		peers:  peers,
		events: newEventQueue(),
	}, nil
}

func (s *StaticService) Start(ctx context.Context) error {
	s.Announce(s.peers...)
	return nil
}

// Announce reports the given peers as discovered. The local peer is skipped.
func (s *StaticService) Announce(pis ...peer.AddrInfo) {
	out := make([]peer.AddrInfo, 0, len(pis))
	for _, pi := range pis {
		if pi.ID == s.self {
			continue
		}
		out = append(out, pi)
	}
	log.Debugw("static peers announced", "count", len(out))
	s.events.push(Event{Kind: Discovered, Peers: out})
}

// Expire reports the given peers as gone.
func (s *StaticService) Expire(ids ...peer.ID) {
	out := make([]peer.AddrInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, peer.AddrInfo{ID: id})
	}
	s.events.push(Event{Kind: Expired, Peers: out})
}

func (s *StaticService) Events() <-chan Event {
	return s.events.out()
}

func (s *StaticService) Close() error {
	s.events.close()
	return nil
}
