package pub

import (
	"fmt"

	"github.com/cairnchain/node/chain"
	"github.com/cairnchain/node/p2p"
)

type msgType int8

const (
	blockEventTpe msgType = iota
	peerEventTpe
)

// the strings must stay consistent with the top level record names in schemas.go
func (this msgType) String() string {
	switch this {
	case blockEventTpe:
		return "BlockEvent"
	case peerEventTpe:
		return "PeerEvent"
	default:
		return "Unknown"
	}
}

// AvroOrJsonMsg is serialized to Avro binary for the Kafka publisher and to
// a json line for the local file publisher.
type AvroOrJsonMsg interface {
	ToNativeMap() map[string]interface{}
	String() string
}

// BlockEvent announces a header joining the active chain.
type BlockEvent struct {
	Height int64  `json:"height"`
	Hash   string `json:"hash"`
	Time   int64  `json:"time"` // header time, unix seconds
	Source string `json:"source"`
}

func NewBlockEvent(header chain.BlockHeader, height int64, source string) *BlockEvent {
	return &BlockEvent{
		Height: height,
		Hash:   header.BlockHash().String(),
		Time:   int64(header.Timestamp),
		Source: source,
	}
}

func (msg *BlockEvent) String() string {
	return fmt.Sprintf("BlockEvent at height: %d, hash: %s", msg.Height, msg.Hash)
}

func (msg *BlockEvent) ToNativeMap() map[string]interface{} {
	var native = make(map[string]interface{})
	native["height"] = msg.Height
	native["hash"] = msg.Hash
	native["time"] = msg.Time
	native["source"] = msg.Source
	return native
}

// PeerEvent announces a connection registry transition.
type PeerEvent struct {
	Kind     string `json:"kind"`
	Endpoint string `json:"endpoint"`
	PeerId   int64  `json:"peerId"` // -1 when no live connection is involved
	Time     int64  `json:"time"`   // unix milliseconds
}

func NewPeerEvent(ev p2p.PeerEvent) *PeerEvent {
	return &PeerEvent{
		Kind:     ev.Kind.String(),
		Endpoint: ev.Endpoint.String(),
		PeerId:   int64(ev.PeerID),
		Time:     ev.Time.UnixMilli(),
	}
}

func (msg *PeerEvent) String() string {
	return fmt.Sprintf("PeerEvent %s, endpoint: %s", msg.Kind, msg.Endpoint)
}

func (msg *PeerEvent) ToNativeMap() map[string]interface{} {
	var native = make(map[string]interface{})
	native["kind"] = msg.Kind
	native["endpoint"] = msg.Endpoint
	native["peerId"] = msg.PeerId
	native["time"] = msg.Time
	return native
}
