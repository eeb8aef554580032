package types

import (
	"encoding/json"
)

// MeshEvent is a value emitted by the mesh to the application. Variants are
// immutable once constructed.
type MeshEvent interface {
	EventType() string
}

type ListeningStarted struct {
	Address string `json:"address"`
}

type PeerDiscovered struct {
	PeerID  string `json:"peer_id"`
	Address string `json:"address"`
}

type IntentReceived struct {
	Intent PrivacyIntent `json:"intent"`
}

type DealAccepted struct {
	Details string `json:"details"`
}

type SettlementComplete struct {
	Details string `json:"details"`
}

func (ListeningStarted) EventType() string   { return "ListeningStarted" }
func (PeerDiscovered) EventType() string     { return "PeerDiscovered" }
func (IntentReceived) EventType() string     { return "IntentReceived" }
func (DealAccepted) EventType() string       { return SettlementDealAccepted }
func (SettlementComplete) EventType() string { return SettlementTypeComplete }

// Each variant encodes as a flat object tagged with a "type" field.

func (e ListeningStarted) MarshalJSON() ([]byte, error) {
	type plain ListeningStarted
	return tagged(e.EventType(), plain(e))
}

func (e PeerDiscovered) MarshalJSON() ([]byte, error) {
	type plain PeerDiscovered
	return tagged(e.EventType(), plain(e))
}

func (e IntentReceived) MarshalJSON() ([]byte, error) {
	type plain IntentReceived
	return tagged(e.EventType(), plain(e))
}

func (e DealAccepted) MarshalJSON() ([]byte, error) {
	type plain DealAccepted
	return tagged(e.EventType(), plain(e))
}

func (e SettlementComplete) MarshalJSON() ([]byte, error) {
	type plain SettlementComplete
	return tagged(e.EventType(), plain(e))
}

func tagged(typ string, v interface{}) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	t, err := json.Marshal(typ)
	if err != nil {
		return nil, err
	}
	fields["type"] = t
	return json.Marshal(fields)
}
