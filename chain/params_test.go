package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenesisHashes(t *testing.T) {
	assert := assert.New(t)

	cases := []struct {
		params *Params
		hash   string
	}{
		{&MainNetParams, "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"},
		{&TestNetParams, "000000000933ea01ad0ee984209779baaec3ced90fa3f408719526f8d77f4943"},
		{&RegressionNetParams, "0f9188f13cb7b2c71f2a335e3a4fc328bf5beb436012afca590b1a11466e2206"},
	}
	for _, c := range cases {
		assert.Equal(c.hash, c.params.GenesisHash.String(), c.params.Name)
		assert.Equal(c.params.GenesisHash, c.params.GenesisBlock.BlockHash(), c.params.Name)
		assert.NoError(CheckProofOfWork(&c.params.GenesisBlock, c.params.PowLimitBits), c.params.Name)
	}
}

func TestParamsForNetwork(t *testing.T) {
	assert := assert.New(t)

	p, ok := ParamsForNetwork("regtest")
	assert.True(ok)
	assert.Equal(&RegressionNetParams, p)

	_, ok = ParamsForNetwork("simnet")
	assert.False(ok)
}
