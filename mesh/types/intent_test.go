package types_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/justnobody/nobody-mesh/build"
	"github.com/justnobody/nobody-mesh/mesh/types"
)

func strp(s string) *string { return &s }

func TestIntentRoundTrip(t *testing.T) {
	intents := []types.PrivacyIntent{
		{IntentType: "trade", Payload: "buy 10 units", Encrypted: true, RelayPath: []string{"origin"}},
		{IntentType: "trade", Payload: "", Encrypted: false, RelayPath: []string{"a", "b", "c"}, RelayFee: strp("1 NEAR")},
		{IntentType: "settlement", Payload: `{"type":"DealAccepted"}`, RelayPath: []string{}},
		{IntentType: "custom-tag", Payload: "ünïcödé", RelayPath: []string{"x"}, RelayFee: strp("")},
	}

	for _, pi := range intents {
		b, err := pi.Serialize()
		require.NoError(t, err)

		out, err := types.DecodeIntent(b)
		require.NoError(t, err)
		require.Equal(t, pi, *out)
	}
}

func TestDecodeIntentNullFee(t *testing.T) {
	b := []byte(`{"intent_type":"trade","payload":"buy 10 units","encrypted":true,"relay_path":["origin"],"relay_fee":null}`)
	pi, err := types.DecodeIntent(b)
	require.NoError(t, err)
	require.Nil(t, pi.RelayFee)
	require.Equal(t, []string{"origin"}, pi.RelayPath)
	require.Equal(t, 1, pi.Hops())
}

func TestDecodeIntentRequiresEnvelopeFields(t *testing.T) {
	cases := map[string]string{
		"bare settlement": `{"type":"DealAccepted","amount":5}`,
		"no payload":      `{"intent_type":"trade","encrypted":true,"relay_path":[]}`,
		"no encrypted":    `{"intent_type":"trade","payload":"x","relay_path":[]}`,
		"null path":       `{"intent_type":"trade","payload":"x","encrypted":true,"relay_path":null}`,
		"upper-case keys":  `{"INTENT_TYPE":"trade","PAYLOAD":"x","ENCRYPTED":true,"RELAY_PATH":[]}`,
		"mixed-case keys":  `{"Intent_Type":"trade","Payload":"x","Encrypted":true,"Relay_Path":["a"]}`,
	}
	for name, in := range cases {
		_, err := types.DecodeIntent([]byte(in))
		require.Error(t, err, name)
		require.True(t, xerrors.Is(err, types.ErrMissingField), name)
	}

	_, err := types.DecodeIntent([]byte(`not json`))
	require.Error(t, err)

	_, err = types.DecodeIntent([]byte(`{"intent_type":7,"payload":"x","encrypted":true,"relay_path":[]}`))
	require.Error(t, err)
}

func TestWrapPayload(t *testing.T) {
	trade := types.WrapPayload("sell 3 widgets")
	require.Equal(t, types.IntentTrade, trade.IntentType)
	require.True(t, trade.Encrypted)
	require.Equal(t, []string{build.OriginHop}, trade.RelayPath)
	require.NotNil(t, trade.RelayFee)
	require.Equal(t, build.DefaultRelayFee, *trade.RelayFee)

	settle := types.WrapPayload(`{"type":"SettlementComplete","tx":"abc"}`)
	require.Equal(t, types.IntentSettlement, settle.IntentType)
	require.False(t, settle.Encrypted)
	require.Nil(t, settle.RelayFee)
	require.Equal(t, `{"type":"SettlementComplete","tx":"abc"}`, settle.Payload)

	// JSON without a type field is still a trade.
	require.Equal(t, types.IntentTrade, types.WrapPayload(`{"amount":5}`).IntentType)
}

func TestSettlementType(t *testing.T) {
	typ, ok := types.SettlementType([]byte(`{"type":"DealAccepted"}`))
	require.True(t, ok)
	require.Equal(t, "DealAccepted", typ)

	typ, ok = types.SettlementType([]byte(`{"type":5}`))
	require.True(t, ok)
	require.Equal(t, "", typ)

	_, ok = types.SettlementType([]byte(`["type"]`))
	require.False(t, ok)
	_, ok = types.SettlementType([]byte(`null`))
	require.False(t, ok)
	_, ok = types.SettlementType([]byte(`{"kind":"x"}`))
	require.False(t, ok)
}

func TestEventEncoding(t *testing.T) {
	events := []types.MeshEvent{
		types.ListeningStarted{Address: "/ip4/127.0.0.1/tcp/4001"},
		types.PeerDiscovered{PeerID: "12D3KooW", Address: "/ip4/10.0.0.2/tcp/4001"},
		types.IntentReceived{Intent: types.PrivacyIntent{IntentType: "trade", Payload: "p", RelayPath: []string{"o"}}},
		types.DealAccepted{Details: `{"type":"DealAccepted"}`},
		types.SettlementComplete{Details: `{"type":"SettlementComplete"}`},
	}

	for _, ev := range events {
		b, err := json.Marshal(ev)
		require.NoError(t, err)

		var fields map[string]interface{}
		require.NoError(t, json.Unmarshal(b, &fields))
		require.Equal(t, ev.EventType(), fields["type"])
	}

	b, err := json.Marshal(types.PeerDiscovered{PeerID: "id", Address: "addr"})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"PeerDiscovered","peer_id":"id","address":"addr"}`, string(b))

	b, err = json.Marshal(types.IntentReceived{Intent: types.PrivacyIntent{IntentType: "trade", Payload: "p", RelayPath: []string{"o"}}})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"IntentReceived","intent":{"intent_type":"trade","payload":"p","encrypted":false,"relay_path":["o"],"relay_fee":null}}`, string(b))
}
