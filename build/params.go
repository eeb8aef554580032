package build

// IntentsTopic is the single gossip topic carrying every intent, deal
// acceptance and settlement confirmation.
const IntentsTopic = "just-nobody-privacy-intents"

// Local network discovery service identifiers.
const (
	ZeroconfServiceType = "_nobody-mesh._tcp"
	MdnsServiceName     = "nobody-mesh"
)

// OriginHop is the relay hop stamped on intents created by this node.
const OriginHop = "origin_node"

// DefaultRelayFee is attached to trade intents wrapped from plain payloads.
const DefaultRelayFee = "0.005 SOL"
