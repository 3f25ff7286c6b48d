package mining

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/cairnchain/node/chain"
	"github.com/cairnchain/node/common/log"
)

// BlockSource tags index extensions produced by this miner.
const BlockSource = "generate"

// Miner grinds proof-of-work headers on top of the index tip. It exists for
// the generate RPC on development networks; the work loop is a plain
// single-threaded nonce scan, which is instant against the regtest target.
type Miner struct {
	index *chain.Index

	// produceMtx serializes block production. Holding it never blocks index
	// readers; the index has its own lock.
	produceMtx sync.Mutex
}

func New(index *chain.Index) *Miner {
	return &Miner{index: index}
}

// ProduceBlocks extends the chain by count blocks and returns their hashes in
// production order. It blocks until production completes and returns the
// hashes mined so far when ctx expires mid-run.
func (m *Miner) ProduceBlocks(ctx context.Context, count int) ([]chain.Hash, error) {
	if count <= 0 {
		return nil, errors.Errorf("block count must be positive, got %d", count)
	}
	m.produceMtx.Lock()
	defer m.produceMtx.Unlock()

	start := time.Now()
	hashes := make([]chain.Hash, 0, count)
	for i := 0; i < count; i++ {
		for {
			if err := ctx.Err(); err != nil {
				return hashes, errors.Wrap(err, "block production interrupted")
			}
			header, err := m.solve(ctx)
			if err != nil {
				return hashes, err
			}
			if _, err := m.index.ExtendTip(header, BlockSource); err != nil {
				// Tip moved underneath us; solve again on the new tip.
				continue
			}
			hashes = append(hashes, header.BlockHash())
			break
		}
	}
	log.Info("blocks produced", "count", len(hashes), "height", m.index.Height(),
		"elapsed", time.Since(start).String())
	return hashes, nil
}

// solve builds a candidate on the current tip and scans nonces until the
// header hash meets the network proof-of-work limit.
func (m *Miner) solve(ctx context.Context) (chain.BlockHeader, error) {
	params := m.index.Params()
	tip, height := m.index.Tip()
	prev := tip.BlockHash()

	ts := uint32(time.Now().Unix())
	if ts <= tip.Timestamp {
		ts = tip.Timestamp + 1
	}
	header := chain.BlockHeader{
		Version:    params.BlockVersion,
		PrevBlock:  prev,
		MerkleRoot: syntheticMerkleRoot(prev, height+1, ts),
		Timestamp:  ts,
		Bits:       params.PowLimitBits,
		Nonce:      0,
	}

	target := chain.CompactToBig(params.PowLimitBits)
	for {
		if chain.HashToBig(header.BlockHash()).Cmp(target) <= 0 {
			return header, nil
		}
		header.Nonce++
		if header.Nonce == 0 {
			// Nonce space exhausted; bump the timestamp and rescan.
			header.Timestamp++
		}
		if header.Nonce&0x3ff == 0 {
			if err := ctx.Err(); err != nil {
				return chain.BlockHeader{}, errors.Wrap(err, "nonce scan interrupted")
			}
		}
	}
}

// syntheticMerkleRoot stands in for a real transaction tree: blocks produced
// here carry no transactions, but every header still needs a merkle root that
// is unique per (parent, height, time) so consecutive blocks never collide.
func syntheticMerkleRoot(prev chain.Hash, height int64, ts uint32) chain.Hash {
	buf := make([]byte, chain.HashSize+12)
	copy(buf, prev.Bytes())
	binary.LittleEndian.PutUint64(buf[chain.HashSize:], uint64(height))
	binary.LittleEndian.PutUint32(buf[chain.HashSize+8:], ts)
	return chain.DoubleHashH(buf)
}
