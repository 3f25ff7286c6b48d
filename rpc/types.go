package rpc

import (
	"context"
	"encoding/json"

	"github.com/cairnchain/node/chain"
	"github.com/cairnchain/node/p2p"
)

// Request is the JSON-RPC 1.0 request body. Params stay raw until the
// argument coercer types them against the command's parameter specs.
type Request struct {
	ID     interface{}       `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// Response is the JSON-RPC 1.0 response body. Error is null on success;
// Result is null on failure and for void commands.
type Response struct {
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
	ID     interface{}     `json:"id"`
}

// ChainQuerier is the read-only view over the chain-sync engine. The server
// never caches what it reads here; every call reflects the engine's state at
// the instant of the call.
type ChainQuerier interface {
	Tip() (chain.BlockHeader, int64)
	Height() int64
	BestHash() chain.Hash
	GenesisHash() chain.Hash
	HeaderAt(height int64) (chain.BlockHeader, error)
	HashAt(height int64) (chain.Hash, error)
	HeaderByHash(hash chain.Hash) (chain.BlockHeader, int64, error)
}

// BlockProducer triggers synchronous block production. Calls may take
// arbitrarily long; the dispatcher holds no shared lock while waiting.
type BlockProducer interface {
	ProduceBlocks(ctx context.Context, count int) ([]chain.Hash, error)
}

// PeerManager is the connection registry surface the peer commands drive.
// AddNode requests a connection attempt, it never guarantees one.
type PeerManager interface {
	AddNode(ep p2p.Endpoint) bool
	ConfiguredNodes() []p2p.NodeRecord
	LiveConnections() []p2p.PeerInfo
	ConnectionCount() int
	SetNetworkActive(active bool) bool
}
