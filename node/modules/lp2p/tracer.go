package lp2p

import (
	"context"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	pubsub_pb "github.com/libp2p/go-libp2p-pubsub/pb"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"

	"github.com/justnobody/nobody-mesh/metrics"
)

func newMeshTracer(ctx context.Context) pubsub.EventTracer {
	return &meshTracer{ctx: ctx}
}

// meshTracer counts gossipsub trace events by type.
type meshTracer struct {
	ctx context.Context
}

func (mt *meshTracer) Trace(evt *pubsub_pb.TraceEvent) {
	ctx, err := tag.New(mt.ctx, tag.Upsert(metrics.TraceType, evt.GetType().String()))
	if err != nil {
		return
	}
	stats.Record(ctx, metrics.PubsubTraceEvent.M(1))

	if evt.GetType() == pubsub_pb.TraceEvent_REJECT_MESSAGE {
		log.Debugw("pubsub rejected message", "reason", evt.GetRejectMessage().GetReason())
	}
}
