package config

// // NOTE: ONLY PUT STRUCT DEFINITIONS IN THIS FILE

// Mesh is the full configuration of a mesh node.
type Mesh struct {
	Libp2p    Libp2p
	Pubsub    Pubsub
	Discovery Discovery
	Logging   Logging
	Metrics   Metrics
	Journal   Journal
}

// Libp2p contains configs for the libp2p host
type Libp2p struct {
	// Binding addresses for the libp2p host - 0 means random port.
	// Format: multiaddress; see https://multiformats.io/multiaddr/
	ListenAddresses []string

	// IdleConnTimeout is the connection manager grace period. Connections
	// older than this that are not protected become candidates for trimming,
	// but trimming only runs once the connection count exceeds ConnMgrHigh.
	// Below that, idle connections stay open.
	IdleConnTimeout Duration

	// ConnMgrLow is the number of connections that the basic connection manager
	// will trim down to.
	ConnMgrLow uint
	// ConnMgrHigh is the number of connections that, when exceeded, will trigger
	// a connection GC operation.
	ConnMgrHigh uint
}

type Pubsub struct {
	// Topic is the single gossip topic used for every message. It is read once
	// at startup.
	Topic string
	// HeartbeatInterval is the gossipsub heartbeat period.
	HeartbeatInterval Duration
	// MaxMessageSize bounds accepted payloads, in bytes.
	MaxMessageSize int
	// PublishCacheSize is the number of recently seen message ids kept for
	// local duplicate detection.
	PublishCacheSize int
	// SeenMessagesTTL is how long a message id counts as seen, both by pubsub
	// and by local duplicate detection.
	SeenMessagesTTL Duration
}

type Discovery struct {
	// Backend selects the local discovery mechanism.
	// One of: "zeroconf", "mdns", "static", "none".
	Backend string
	// ServiceName overrides the DNS-SD service name. Empty means the
	// backend's default.
	ServiceName string
	// StaticPeers are announced once at startup by the "static" backend.
	// Format: multiaddress including /p2p/<peer id>
	StaticPeers []string
}

// Logging is the logging system config
type Logging struct {
	// SubsystemLevels specify per-subsystem log levels
	SubsystemLevels map[string]string
}

type Metrics struct {
	// ListenAddress serves Prometheus metrics on /metrics when set.
	// Format: host:port
	ListenAddress string
}

type Journal struct {
	// Path is the directory holding the event journal. Empty disables it.
	Path string
	// DisabledEvents is a comma-separated list of system:event pairs that
	// are not recorded.
	DisabledEvents string
}
