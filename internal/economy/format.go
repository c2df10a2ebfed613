package economy

import (
	"math/big"

	"github.com/dustin/go-humanize"
)

// Comma formats an unsigned amount with thousands separators. It covers the
// full uint64 range, which humanize.Comma's int64 parameter does not.
func Comma(v uint64) string {
	return humanize.BigComma(new(big.Int).SetUint64(v))
}
