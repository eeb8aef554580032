package types

import (
	"encoding/json"

	"golang.org/x/xerrors"

	"github.com/justnobody/nobody-mesh/build"
)

// Intent type tags. The tag is an open string on the wire; these are the
// values this node produces and interprets.
const (
	IntentTrade      = "trade"
	IntentSettlement = "settlement"
)

// Settlement payload discriminators.
const (
	SettlementDealAccepted = "DealAccepted"
	SettlementTypeComplete = "SettlementComplete"
)

var ErrMissingField = xerrors.New("missing field")

// PrivacyIntent is the unit broadcast over the intents topic.
type PrivacyIntent struct {
	IntentType string `json:"intent_type"`
	// Payload is opaque. For settlement intents it carries a JSON object with
	// its own "type" discriminator.
	Payload string `json:"payload"`
	// Encrypted asserts that Payload is ciphertext. It is never checked here.
	Encrypted bool     `json:"encrypted"`
	RelayPath []string `json:"relay_path"`
	RelayFee  *string  `json:"relay_fee"`
}

// envelopeFields are the keys every envelope must carry. Keys match exactly;
// encoding/json alone would also accept case variants.
var envelopeFields = []string{"intent_type", "payload", "encrypted", "relay_path"}

// UnmarshalJSON rejects objects that lack any of the required envelope
// fields. Bare settlement objects share the topic with intents and must not
// decode as empty intents.
func (pi *PrivacyIntent) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}

	for _, name := range envelopeFields {
		raw, ok := fields[name]
		if !ok || string(raw) == "null" {
			return xerrors.Errorf("%s: %w", name, ErrMissingField)
		}
	}

	var out PrivacyIntent
	if err := json.Unmarshal(fields["intent_type"], &out.IntentType); err != nil {
		return xerrors.Errorf("intent_type: %w", err)
	}
	if err := json.Unmarshal(fields["payload"], &out.Payload); err != nil {
		return xerrors.Errorf("payload: %w", err)
	}
	if err := json.Unmarshal(fields["encrypted"], &out.Encrypted); err != nil {
		return xerrors.Errorf("encrypted: %w", err)
	}
	if err := json.Unmarshal(fields["relay_path"], &out.RelayPath); err != nil {
		return xerrors.Errorf("relay_path: %w", err)
	}
	if raw, ok := fields["relay_fee"]; ok {
		if err := json.Unmarshal(raw, &out.RelayFee); err != nil {
			return xerrors.Errorf("relay_fee: %w", err)
		}
	}

	*pi = out
	return nil
}

func (pi *PrivacyIntent) Serialize() ([]byte, error) {
	return json.Marshal(pi)
}

func DecodeIntent(b []byte) (*PrivacyIntent, error) {
	var pi PrivacyIntent
	if err := json.Unmarshal(b, &pi); err != nil {
		return nil, err
	}
	return &pi, nil
}

// Hops is the number of relay hops recorded on the intent.
func (pi *PrivacyIntent) Hops() int {
	return len(pi.RelayPath)
}

// WrapPayload turns an application payload into an intent originating at this
// node. Payloads that are JSON objects carrying a "type" field are settlement
// messages and travel unencrypted without a fee; anything else is a trade.
func WrapPayload(payload string) PrivacyIntent {
	if _, ok := SettlementType([]byte(payload)); ok {
		return PrivacyIntent{
			IntentType: IntentSettlement,
			Payload:    payload,
			Encrypted:  false,
			RelayPath:  []string{build.OriginHop},
		}
	}

	fee := build.DefaultRelayFee
	return PrivacyIntent{
		IntentType: IntentTrade,
		Payload:    payload,
		Encrypted:  true,
		RelayPath:  []string{build.OriginHop},
		RelayFee:   &fee,
	}
}

// SettlementType returns the "type" field of a JSON object. The boolean is
// false when b is not an object or has no "type" key. A present but
// non-string type yields an empty string and true.
func SettlementType(b []byte) (string, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil || obj == nil {
		return "", false
	}
	raw, ok := obj["type"]
	if !ok {
		return "", false
	}
	var t string
	if err := json.Unmarshal(raw, &t); err != nil {
		return "", true
	}
	return t, true
}
