package metrics

import (
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

// Tags
var (
	Version, _ = tag.NewKey("version")
	Commit, _  = tag.NewKey("commit")

	// EventType is the mesh event variant, or the classifier outcome.
	EventType, _ = tag.NewKey("event_type")
	// FailureType names the reason a broadcast or message was dropped.
	FailureType, _ = tag.NewKey("failure_type")
	// TraceType is the gossipsub trace event type.
	TraceType, _ = tag.NewKey("trace_type")
)

// Measures
var (
	MeshInfo = stats.Int64("info", "Arbitrary counter to tag mesh info to", stats.UnitDimensionless)

	IntentPublished   = stats.Int64("mesh/intent_published", "Counter for intents published to peers", stats.UnitDimensionless)
	IntentRejected    = stats.Int64("mesh/intent_rejected", "Counter for outbound intents failing relay integrity", stats.UnitDimensionless)
	PublishFailure    = stats.Int64("mesh/publish_failure", "Counter for failed publishes", stats.UnitDimensionless)
	SingleNodePublish = stats.Int64("mesh/single_node_publish", "Counter for broadcasts with no connected peers", stats.UnitDimensionless)
	MessageReceived   = stats.Int64("mesh/message_received", "Counter for authenticated messages received from peers", stats.UnitDimensionless)
	MessageDropped    = stats.Int64("mesh/message_dropped", "Counter for received messages that produced no event", stats.UnitDimensionless)
	EventEmitted      = stats.Int64("mesh/event_emitted", "Counter for events emitted to the application", stats.UnitDimensionless)
	PeerDiscovered    = stats.Int64("mesh/peer_discovered", "Counter for discovered peers", stats.UnitDimensionless)
	PeerExpired       = stats.Int64("mesh/peer_expired", "Counter for expired peers", stats.UnitDimensionless)
	ExplicitPeers     = stats.Int64("mesh/explicit_peers", "Current size of the explicit peer set", stats.UnitDimensionless)
	PubsubTraceEvent  = stats.Int64("pubsub/trace_event", "Counter for gossipsub trace events", stats.UnitDimensionless)
)

var (
	InfoView = &view.View{
		Name:        "info",
		Description: "Mesh node information",
		Measure:     MeshInfo,
		Aggregation: view.LastValue(),
		TagKeys:     []tag.Key{Version, Commit},
	}
	IntentPublishedView = &view.View{
		Measure:     IntentPublished,
		Aggregation: view.Count(),
	}
	IntentRejectedView = &view.View{
		Measure:     IntentRejected,
		Aggregation: view.Count(),
	}
	PublishFailureView = &view.View{
		Measure:     PublishFailure,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{FailureType},
	}
	SingleNodePublishView = &view.View{
		Measure:     SingleNodePublish,
		Aggregation: view.Count(),
	}
	MessageReceivedView = &view.View{
		Measure:     MessageReceived,
		Aggregation: view.Count(),
	}
	MessageDroppedView = &view.View{
		Measure:     MessageDropped,
		Aggregation: view.Count(),
	}
	EventEmittedView = &view.View{
		Measure:     EventEmitted,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{EventType},
	}
	PeerDiscoveredView = &view.View{
		Measure:     PeerDiscovered,
		Aggregation: view.Count(),
	}
	PeerExpiredView = &view.View{
		Measure:     PeerExpired,
		Aggregation: view.Count(),
	}
	ExplicitPeersView = &view.View{
		Measure:     ExplicitPeers,
		Aggregation: view.LastValue(),
	}
	PubsubTraceEventView = &view.View{
		Measure:     PubsubTraceEvent,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{TraceType},
	}
)

// DefaultViews is an array of OpenCensus views for metric gathering purposes
var DefaultViews = []*view.View{
	InfoView,
	IntentPublishedView,
	IntentRejectedView,
	PublishFailureView,
	SingleNodePublishView,
	MessageReceivedView,
	MessageDroppedView,
	EventEmittedView,
	PeerDiscoveredView,
	PeerExpiredView,
	ExplicitPeersView,
	PubsubTraceEventView,
}
