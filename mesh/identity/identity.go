// Package identity creates the anonymous, per-session node identity. Keys are
// held in memory only and never written to disk.
package identity

import (
	"crypto/rand"
	"fmt"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

type Identity struct {
	priv crypto.PrivKey
	id   peer.ID
}

// New generates a fresh ed25519 keypair and derives the node identifier
// from its public half. Every call yields an unlinkable identity.
func New() *Identity {
	priv, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		// crypto/rand does not fail on supported platforms
		panic(fmt.Sprintf("generate ed25519 identity: %s", err))
	}

	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		panic(fmt.Sprintf("derive peer id: %s", err))
	}

	return &Identity{priv: priv, id: id}
}

func (i *Identity) PrivKey() crypto.PrivKey {
	return i.priv
}

func (i *Identity) PubKey() crypto.PubKey {
	return i.priv.GetPublic()
}

func (i *Identity) ID() peer.ID {
	return i.id
}
