// Package classify resolves raw gossip payloads into mesh events. Two message
// shapes share the intents topic: the PrivacyIntent envelope and a bare JSON
// object carrying a settlement "type". Decoders are tried in order; the first
// one that recognizes the shape decides the outcome, even when that outcome is
// no event at all.
package classify

import (
	"bytes"
	"encoding/json"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/justnobody/nobody-mesh/mesh/types"
)

var log = logging.Logger("classify")

// decoder returns an error when data is not in the decoder's shape. A nil
// event with a nil error means the shape matched but carries nothing to emit.
type decoder struct {
	name   string
	decode func(data []byte) (types.MeshEvent, error)
}

var decoders = []decoder{
	{name: "envelope", decode: decodeEnvelope},
	{name: "bare-settlement", decode: decodeBareSettlement},
}

// Classify returns the event for data, or false when data should be dropped.
func Classify(data []byte) (types.MeshEvent, bool) {
	for _, d := range decoders {
		ev, err := d.decode(data)
		if err != nil {
			log.Debugw("decoder did not match", "decoder", d.name, "error", err)
			continue
		}
		if ev == nil {
			log.Debugw("message carries no event", "decoder", d.name)
			return nil, false
		}
		return ev, true
	}
	return nil, false
}

func decodeEnvelope(data []byte) (types.MeshEvent, error) {
	pi, err := types.DecodeIntent(data)
	if err != nil {
		return nil, err
	}

	if pi.IntentType != types.IntentSettlement {
		return types.IntentReceived{Intent: *pi}, nil
	}

	return settlementEvent([]byte(pi.Payload)), nil
}

func decodeBareSettlement(data []byte) (types.MeshEvent, error) {
	if !json.Valid(data) {
		return nil, xerrors.New("not a JSON document")
	}
	return settlementEvent(data), nil
}

// settlementEvent maps a settlement object to its event. Details keep the
// original field order with insignificant whitespace removed.
func settlementEvent(raw []byte) types.MeshEvent {
	typ, ok := types.SettlementType(raw)
	if !ok {
		return nil
	}

	var details bytes.Buffer
	if err := json.Compact(&details, raw); err != nil {
		return nil
	}

	switch typ {
	case types.SettlementTypeComplete:
		return types.SettlementComplete{Details: details.String()}
	case types.SettlementDealAccepted:
		return types.DealAccepted{Details: details.String()}
	default:
		return nil
	}
}
