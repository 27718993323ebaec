package events

import (
	"math/big"
	"strconv"

	"github.com/holiman/uint256"
)

func u256String(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func uintString(v uint64) string {
	return strconv.FormatUint(v, 10)
}
