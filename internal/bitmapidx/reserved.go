package bitmapidx

import "github.com/evidex/evidex/internal/bitstream"

// finalize clears bit 0 of a lookup result before returning it to the
// caller. Event id 0 is reserved and must never appear in a lookup result
// — a plain equality slice already satisfies this because
// it is only ever set at real event ids, but the complement operators
// (NotEqual, the "all ids" universe used for Greater/GreaterEqual, and the
// NotIn commutation) all flip bit 0 to true unless explicitly cleared here.
func finalize(b bitstream.Bitstream) bitstream.Bitstream {
	if b.Len() > 0 {
		b.Clear(0)
	}
	return b
}
