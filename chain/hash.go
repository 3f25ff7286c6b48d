package chain

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
)

// HashSize is the byte length of every hash used by the chain.
const HashSize = 32

// Hash is a double-SHA-256 digest in internal (little-endian) byte order.
// The canonical string form reverses the bytes, the convention every
// Bitcoin-family tool expects.
type Hash [HashSize]byte

func (h Hash) String() string {
	for i := 0; i < HashSize/2; i++ {
		h[i], h[HashSize-1-i] = h[HashSize-1-i], h[i]
	}
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the internal-order bytes.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

// NewHashFromStr parses the canonical (byte-reversed) hex form. Short input
// is zero-padded on the left the way the original tooling does.
func NewHashFromStr(s string) (Hash, error) {
	var h Hash
	if len(s) > HashSize*2 {
		return h, errors.Errorf("hash string length %d exceeds max %d", len(s), HashSize*2)
	}

	var buf [HashSize * 2]byte
	for i := range buf {
		buf[i] = '0'
	}
	copy(buf[HashSize*2-len(s):], s)

	var raw [HashSize]byte
	if _, err := hex.Decode(raw[:], buf[:]); err != nil {
		return h, errors.Wrap(err, "malformed hash string")
	}
	for i, b := range raw {
		h[HashSize-1-i] = b
	}
	return h, nil
}

func mustHashFromStr(s string) Hash {
	h, err := NewHashFromStr(s)
	if err != nil {
		panic(err)
	}
	return h
}

// DoubleHashH computes sha256(sha256(b)) and returns it as a Hash.
func DoubleHashH(b []byte) Hash {
	first := sha256.Sum256(b)
	return Hash(sha256.Sum256(first[:]))
}
