package chain

import (
	"sync"

	bt "github.com/google/btree"
	"github.com/pkg/errors"
)

// ErrHeaderNotFound is returned by lookups for heights or hashes the index
// has never seen.
var ErrHeaderNotFound = errors.New("header not found")

// TipListener observes every tip extension. The source tag names the
// subsystem that produced the header ("generate", "sync"). Listeners run on
// the extending goroutine after the index lock is released, so they may call
// back into the index but must not block for long.
type TipListener func(header BlockHeader, height int64, source string)

type indexEntry struct {
	height int64
	header BlockHeader
	hash   Hash
}

func (e *indexEntry) Less(than bt.Item) bool {
	return e.height < than.(*indexEntry).height
}

// Index is the in-memory view of the best chain: every stored header is an
// ancestor of the tip. It is the synchronization point between block
// production and RPC reads, so all accessors return copies.
type Index struct {
	mtx      sync.RWMutex
	byHeight *bt.BTree
	byHash   map[Hash]*indexEntry
	tip      *indexEntry

	params    *Params
	listeners []TipListener
}

// NewIndex builds a header index seeded with the network genesis block at
// height 0.
func NewIndex(params *Params) *Index {
	genesis := &indexEntry{
		height: 0,
		header: params.GenesisBlock,
		hash:   params.GenesisHash,
	}
	idx := &Index{
		byHeight: bt.New(8),
		byHash:   make(map[Hash]*indexEntry),
		tip:      genesis,
		params:   params,
	}
	idx.byHeight.ReplaceOrInsert(genesis)
	idx.byHash[genesis.hash] = genesis
	return idx
}

func (idx *Index) Params() *Params {
	return idx.params
}

// GenesisHash returns the fixed hash of the height-0 block.
func (idx *Index) GenesisHash() Hash {
	return idx.params.GenesisHash
}

// Tip returns the current best header and its height.
func (idx *Index) Tip() (BlockHeader, int64) {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()
	return idx.tip.header, idx.tip.height
}

// Height returns the height of the current best header.
func (idx *Index) Height() int64 {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()
	return idx.tip.height
}

// BestHash returns the hash of the current best header.
func (idx *Index) BestHash() Hash {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()
	return idx.tip.hash
}

// HeaderAt returns the header at the given height, or ErrHeaderNotFound when
// the height is negative or beyond the tip.
func (idx *Index) HeaderAt(height int64) (BlockHeader, error) {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()
	item := idx.byHeight.Get(&indexEntry{height: height})
	if item == nil {
		return BlockHeader{}, errors.Wrapf(ErrHeaderNotFound, "height %d", height)
	}
	return item.(*indexEntry).header, nil
}

// HashAt returns the block hash at the given height.
func (idx *Index) HashAt(height int64) (Hash, error) {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()
	item := idx.byHeight.Get(&indexEntry{height: height})
	if item == nil {
		return Hash{}, errors.Wrapf(ErrHeaderNotFound, "height %d", height)
	}
	return item.(*indexEntry).hash, nil
}

// HeaderByHash returns the header with the given hash and its height.
func (idx *Index) HeaderByHash(hash Hash) (BlockHeader, int64, error) {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()
	entry, ok := idx.byHash[hash]
	if !ok {
		return BlockHeader{}, 0, errors.Wrapf(ErrHeaderNotFound, "hash %v", hash)
	}
	return entry.header, entry.height, nil
}

// Subscribe registers a listener for future tip extensions.
func (idx *Index) Subscribe(fn TipListener) {
	idx.mtx.Lock()
	defer idx.mtx.Unlock()
	idx.listeners = append(idx.listeners, fn)
}

// ExtendTip appends a header on top of the current tip and returns the new
// height. The header must reference the tip through PrevBlock; competing
// branches are not tracked.
func (idx *Index) ExtendTip(header BlockHeader, source string) (int64, error) {
	hash := header.BlockHash()

	idx.mtx.Lock()
	if header.PrevBlock != idx.tip.hash {
		prev := idx.tip.hash
		idx.mtx.Unlock()
		return 0, errors.Errorf("header %v does not extend tip %v", hash, prev)
	}
	entry := &indexEntry{
		height: idx.tip.height + 1,
		header: header,
		hash:   hash,
	}
	idx.byHeight.ReplaceOrInsert(entry)
	idx.byHash[hash] = entry
	idx.tip = entry
	listeners := make([]TipListener, len(idx.listeners))
	copy(listeners, idx.listeners)
	idx.mtx.Unlock()

	for _, fn := range listeners {
		fn(header, entry.height, source)
	}
	return entry.height, nil
}
