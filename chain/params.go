package chain

// Params bundles everything that distinguishes one Cairn network from
// another: the genesis block, the proof-of-work ceiling, and peer defaults.
// The genesis constants follow the Bitcoin reference networks so existing
// tooling recognizes the hashes.
type Params struct {
	Name        string
	DefaultPort uint16

	GenesisBlock BlockHeader
	GenesisHash  Hash

	// PowLimitBits is the compact form of the highest (easiest) target a
	// block may claim on this network.
	PowLimitBits uint32

	// BlockVersion is stamped on newly produced blocks.
	BlockVersion int32
}

// genesisMerkleRoot is shared by all three reference networks.
var genesisMerkleRoot = mustHashFromStr("4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b")

var MainNetParams = Params{
	Name:        "mainnet",
	DefaultPort: 8333,
	GenesisBlock: BlockHeader{
		Version:    1,
		PrevBlock:  Hash{},
		MerkleRoot: genesisMerkleRoot,
		Timestamp:  1231006505,
		Bits:       0x1d00ffff,
		Nonce:      2083236893,
	},
	GenesisHash:  mustHashFromStr("000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"),
	PowLimitBits: 0x1d00ffff,
	BlockVersion: 0x20000000,
}

var TestNetParams = Params{
	Name:        "testnet",
	DefaultPort: 18333,
	GenesisBlock: BlockHeader{
		Version:    1,
		PrevBlock:  Hash{},
		MerkleRoot: genesisMerkleRoot,
		Timestamp:  1296688602,
		Bits:       0x1d00ffff,
		Nonce:      414098458,
	},
	GenesisHash:  mustHashFromStr("000000000933ea01ad0ee984209779baaec3ced90fa3f408719526f8d77f4943"),
	PowLimitBits: 0x1d00ffff,
	BlockVersion: 0x20000000,
}

var RegressionNetParams = Params{
	Name:        "regtest",
	DefaultPort: 18444,
	GenesisBlock: BlockHeader{
		Version:    1,
		PrevBlock:  Hash{},
		MerkleRoot: genesisMerkleRoot,
		Timestamp:  1296688602,
		Bits:       0x207fffff,
		Nonce:      2,
	},
	GenesisHash:  mustHashFromStr("0f9188f13cb7b2c71f2a335e3a4fc328bf5beb436012afca590b1a11466e2206"),
	PowLimitBits: 0x207fffff,
	BlockVersion: 0x20000000,
}

// ParamsForNetwork resolves a network name from config to its parameters.
func ParamsForNetwork(name string) (*Params, bool) {
	switch name {
	case MainNetParams.Name:
		return &MainNetParams, true
	case TestNetParams.Name:
		return &TestNetParams, true
	case RegressionNetParams.Name:
		return &RegressionNetParams, true
	default:
		return nil, false
	}
}
