package discovery

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/betamos/zeroconf"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"golang.org/x/xerrors"
)

// ZeroconfService publishes the local peer as a DNS-SD service instance named
// after its peer id and browses for other instances of the same type.
// Instances that go away (goodbye packets or TTL expiry) are reported as
// Expired.
type ZeroconfService struct {
	h       host.Host
	svcType string
	events  *eventQueue

	client *zeroconf.Client
}

var _ Service = (*ZeroconfService)(nil)

func NewZeroconf(h host.Host, svcType string) *ZeroconfService {
	return &ZeroconfService{
		h:       h,
		svcType: svcType,
		events:  newEventQueue(),
	}
}

func (z *ZeroconfService) Start(ctx context.Context) error {
	port, err := tcpPort(z.h.Addrs())
	if err != nil {
		return err
	}

	ty := zeroconf.NewType(z.svcType)
	self := zeroconf.NewService(ty, z.h.ID().String(), port)

	client, err := zeroconf.New().
		Publish(self).
		Browse(z.handle, ty).
		Open()
	if err != nil {
		return xerrors.Errorf("zeroconf: %w", err)
	}
	z.client = client

	log.Infow("zeroconf discovery started", "service", z.svcType, "port", port)
	return nil
}

func (z *ZeroconfService) handle(e zeroconf.Event) {
	if e.Service == nil {
		return
	}

	pid, err := peer.Decode(e.Name)
	if err != nil {
		log.Debugw("ignoring zeroconf instance", "name", e.Name, "err", err)
		return
	}
	if pid == z.h.ID() {
		return
	}

	if e.Op == zeroconf.OpRemoved {
		z.events.push(Event{Kind: Expired, Peers: []peer.AddrInfo{{ID: pid}}})
		return
	}

	pi := peer.AddrInfo{ID: pid}
	for _, a := range e.Addrs {
		maddr, err := toMultiaddr(a, e.Port)
		if err != nil {
			continue
		}
		pi.Addrs = append(pi.Addrs, maddr)
	}
	if len(pi.Addrs) == 0 {
		return
	}

	z.events.push(Event{Kind: Discovered, Peers: []peer.AddrInfo{pi}})
}

func (z *ZeroconfService) Events() <-chan Event {
	return z.events.out()
}

func (z *ZeroconfService) Close() error {
	defer z.events.close()
	if z.client != nil {
		return z.client.Close()
	}
	return nil
}

// tcpPort picks the port of the first TCP listen address.
func tcpPort(addrs []ma.Multiaddr) (uint16, error) {
	for _, a := range addrs {
		v, err := a.ValueForProtocol(ma.P_TCP)
		if err != nil {
			continue
		}
		var port uint16
		if _, err := fmt.Sscanf(v, "%d", &port); err != nil || port == 0 {
			continue
		}
		return port, nil
	}
	return 0, xerrors.New("no tcp listen address to announce")
}

func toMultiaddr(a netip.Addr, port uint16) (ma.Multiaddr, error) {
	if !a.IsValid() {
		return nil, xerrors.New("invalid address")
	}
	a = a.Unmap()
	if a.Is4() {
		return ma.NewMultiaddr(fmt.Sprintf("/ip4/%s/tcp/%d", a, port))
	}
	if a.Zone() != "" {
		return nil, xerrors.New("zoned ipv6 address")
	}
	return ma.NewMultiaddr(fmt.Sprintf("/ip6/%s/tcp/%d", a, port))
}
