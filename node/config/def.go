package config

import (
	"encoding"
	"time"

	"github.com/justnobody/nobody-mesh/build"
)

const (
	DiscoveryZeroconf = "zeroconf"
	DiscoveryMdns     = "mdns"
	DiscoveryStatic   = "static"
	DiscoveryNone     = "none"
)

// DefaultMesh returns the default config
func DefaultMesh() *Mesh {
	return &Mesh{
		Libp2p: Libp2p{
			ListenAddresses: []string{
				"/ip4/0.0.0.0/tcp/0",
			},
			IdleConnTimeout: Duration(60 * time.Second),

			ConnMgrLow:  32,
			ConnMgrHigh: 96,
		},
		Pubsub: Pubsub{
			Topic:             build.IntentsTopic,
			HeartbeatInterval: Duration(time.Second),
			MaxMessageSize:    1 << 20,
			PublishCacheSize:  1024,
			SeenMessagesTTL:   Duration(2 * time.Minute),
		},
		Discovery: Discovery{
			Backend: DiscoveryZeroconf,
		},
		Logging: Logging{
			SubsystemLevels: map[string]string{},
		},
	}
}

var _ encoding.TextMarshaler = (*Duration)(nil)
var _ encoding.TextUnmarshaler = (*Duration)(nil)

// Duration is a wrapper type for time.Duration
// for decoding and encoding from/to TOML
type Duration time.Duration

// UnmarshalText implements interface for TOML decoding
func (dur *Duration) UnmarshalText(text []byte) error {
	d, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*dur = Duration(d)
	return err
}

func (dur Duration) MarshalText() ([]byte, error) {
	d := time.Duration(dur)
	return []byte(d.String()), nil
}
