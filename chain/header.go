package chain

import (
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
)

// HeaderSize is the length of a serialized block header.
const HeaderSize = 80

// BlockHeader is the fixed 80-byte header every block carries. The block
// hash is defined over exactly this serialization, so the field layout and
// byte order here are consensus-critical: changing either silently changes
// every block hash.
type BlockHeader struct {
	Version    int32
	PrevBlock  Hash
	MerkleRoot Hash
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
}

// Serialize encodes the header in wire order: all integers little-endian,
// hashes in internal byte order.
func (h *BlockHeader) Serialize() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Version))
	copy(buf[4:36], h.PrevBlock[:])
	copy(buf[36:68], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(buf[68:72], h.Timestamp)
	binary.LittleEndian.PutUint32(buf[72:76], h.Bits)
	binary.LittleEndian.PutUint32(buf[76:80], h.Nonce)
	return buf
}

// BlockHash double-hashes the serialized header. Re-hashing the individual
// fields a caller was handed must reproduce this value bit-for-bit.
func (h *BlockHeader) BlockHash() Hash {
	return DoubleHashH(h.Serialize())
}

// Time returns the header timestamp as a time.Time.
func (h *BlockHeader) Time() time.Time {
	return time.Unix(int64(h.Timestamp), 0)
}

// DeserializeHeader decodes an 80-byte wire header.
func DeserializeHeader(buf []byte) (*BlockHeader, error) {
	if len(buf) != HeaderSize {
		return nil, errors.Errorf("invalid header length %d, want %d", len(buf), HeaderSize)
	}
	h := &BlockHeader{}
	h.Version = int32(binary.LittleEndian.Uint32(buf[0:4]))
	copy(h.PrevBlock[:], buf[4:36])
	copy(h.MerkleRoot[:], buf[36:68])
	h.Timestamp = binary.LittleEndian.Uint32(buf[68:72])
	h.Bits = binary.LittleEndian.Uint32(buf[72:76])
	h.Nonce = binary.LittleEndian.Uint32(buf[76:80])
	return h, nil
}

// DeserializeHeaderHex decodes the hex form served to verbose=false callers.
func DeserializeHeaderHex(s string) (*BlockHeader, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "malformed header hex")
	}
	return DeserializeHeader(raw)
}
