// Package identity persists the node's long-term Ed25519 keypair and
// derives the stable peer identifier used as the gossip signing key and
// the VoiceSignal "from" field.
//
// identity.bin holds the same two-field (KeyType, Data) shape libp2p's own
// crypto.Marshal/Unmarshal produce for a protobuf-encoded PrivateKey, hand
// rolled here with google.golang.org/protobuf's low-level protowire codec
// so the file stays wire-compatible with libp2p-native key marshaling
// without requiring protoc-generated message types.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"google.golang.org/protobuf/encoding/protowire"
)

// ErrIO is returned when identity.bin cannot be read, written, or its
// parent directory created.
var ErrIO = errors.New("identity: io error")

// ErrKeyDecode is returned when the persisted bytes do not decode into a
// valid Ed25519 key.
var ErrKeyDecode = errors.New("identity: key decode error")

// keyTypeEd25519 mirrors libp2p's crypto/pb KeyType.Ed25519 enum value.
const keyTypeEd25519 = 1

// fieldKeyType and fieldData are the libp2p crypto.pb.PrivateKey field numbers.
const (
	fieldKeyType = 1
	fieldData    = 2
)

// Identity is a loaded or freshly generated node identity.
type Identity struct {
	Priv libp2pcrypto.PrivKey
	Peer peer.ID
}

// LoadOrCreate reads the keypair at path, or generates and persists a
// fresh Ed25519 keypair if the file does not yet exist.
func LoadOrCreate(path string) (*Identity, error) {
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		return decode(raw)
	case os.IsNotExist(err):
		return generate(path)
	default:
		return nil, fmt.Errorf("%w: reading %s: %v", ErrIO, path, err)
	}
}

func generate(path string) (*Identity, error) {
	// ed25519.GenerateKey's second return is the full 64-byte raw private
	// key (seed || public key), the same representation libp2p's
	// crypto.Ed25519PrivateKey.Raw() uses.
	_, rawPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: generating key: %v", ErrKeyDecode, err)
	}

	priv, err := libp2pcrypto.UnmarshalEd25519PrivateKey(rawPriv)
	if err != nil {
		return nil, fmt.Errorf("%w: wrapping generated key: %v", ErrKeyDecode, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return nil, fmt.Errorf("%w: creating %s: %v", ErrIO, dir, mkErr)
		}
	}

	if wErr := os.WriteFile(path, encode(rawPriv), 0o600); wErr != nil {
		return nil, fmt.Errorf("%w: writing %s: %v", ErrIO, path, wErr)
	}

	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: deriving peer id: %v", ErrKeyDecode, err)
	}
	return &Identity{Priv: priv, Peer: id}, nil
}

func decode(raw []byte) (*Identity, error) {
	var keyType uint64
	var data []byte

	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return nil, fmt.Errorf("%w: malformed tag", ErrKeyDecode)
		}
		raw = raw[n:]

		switch {
		case num == fieldKeyType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(raw)
			if n < 0 {
				return nil, fmt.Errorf("%w: malformed key type", ErrKeyDecode)
			}
			keyType = v
			raw = raw[n:]
		case num == fieldData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(raw)
			if n < 0 {
				return nil, fmt.Errorf("%w: malformed key data", ErrKeyDecode)
			}
			data = v
			raw = raw[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, raw)
			if n < 0 {
				return nil, fmt.Errorf("%w: unknown field", ErrKeyDecode)
			}
			raw = raw[n:]
		}
	}

	if keyType != keyTypeEd25519 {
		return nil, fmt.Errorf("%w: unsupported key type %d", ErrKeyDecode, keyType)
	}

	priv, err := libp2pcrypto.UnmarshalEd25519PrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDecode, err)
	}

	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: deriving peer id: %v", ErrKeyDecode, err)
	}
	return &Identity{Priv: priv, Peer: id}, nil
}

func encode(seed []byte) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldKeyType, protowire.VarintType)
	b = protowire.AppendVarint(b, keyTypeEd25519)
	b = protowire.AppendTag(b, fieldData, protowire.BytesType)
	b = protowire.AppendBytes(b, seed)
	return b
}
