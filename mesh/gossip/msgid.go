package gossip

import (
	pubsub_pb "github.com/libp2p/go-libp2p-pubsub/pb"
	"golang.org/x/crypto/blake2b"
)

// MessageID content-addresses a payload: identical bytes map to the same id
// regardless of sender, sequence number or delivery path.
func MessageID(data []byte) string {
	hash := blake2b.Sum256(data)
	return string(hash[:])
}

// HashMsgId adapts MessageID to the pubsub message id hook.
func HashMsgId(m *pubsub_pb.Message) string {
	return MessageID(m.Data)
}
