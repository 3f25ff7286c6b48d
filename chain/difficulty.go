package chain

import (
	"math/big"

	"github.com/pkg/errors"
)

// CompactToBig expands the 32-bit compact difficulty representation used in
// header Bits fields into the full target threshold. The encoding is a
// base-256 scientific notation: the high byte is the exponent, the low 23
// bits the mantissa, bit 24 the (unused for valid targets) sign.
func CompactToBig(compact uint32) *big.Int {
	mantissa := compact & 0x007fffff
	isNegative := compact&0x00800000 != 0
	exponent := uint(compact >> 24)

	var bn *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		bn = big.NewInt(int64(mantissa))
	} else {
		bn = big.NewInt(int64(mantissa))
		bn.Lsh(bn, 8*(exponent-3))
	}

	if isNegative {
		bn = bn.Neg(bn)
	}
	return bn
}

// HashToBig interprets a hash as the big-endian number the target threshold
// is compared against.
func HashToBig(hash Hash) *big.Int {
	for i := 0; i < HashSize/2; i++ {
		hash[i], hash[HashSize-1-i] = hash[HashSize-1-i], hash[i]
	}
	return new(big.Int).SetBytes(hash[:])
}

// DifficultyRatio expresses a compact target as the conventional difficulty
// number: how many times harder the target is than the network proof-of-work
// limit.
func DifficultyRatio(bits, powLimitBits uint32) float64 {
	target := CompactToBig(bits)
	if target.Sign() <= 0 {
		return 0
	}
	ratio, _ := new(big.Rat).SetFrac(CompactToBig(powLimitBits), target).Float64()
	return ratio
}

// CheckProofOfWork verifies the header hash satisfies the target its own
// Bits field claims, bounded above by the network proof-of-work limit.
func CheckProofOfWork(header *BlockHeader, powLimitBits uint32) error {
	target := CompactToBig(header.Bits)
	if target.Sign() <= 0 {
		return errors.Errorf("block target difficulty of %064x is too low", target)
	}
	powLimit := CompactToBig(powLimitBits)
	if target.Cmp(powLimit) > 0 {
		return errors.Errorf("block target difficulty of %064x is higher than max of %064x", target, powLimit)
	}
	hashNum := HashToBig(header.BlockHash())
	if hashNum.Cmp(target) > 0 {
		return errors.Errorf("block hash of %064x is higher than expected max of %064x", hashNum, target)
	}
	return nil
}
