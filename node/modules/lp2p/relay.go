package lp2p

import (
	"github.com/libp2p/go-libp2p"
)

func NoRelay() []libp2p.Option {
	// always disabled, it's an eclipse attack vector
	return []libp2p.Option{libp2p.DisableRelay()}
}
