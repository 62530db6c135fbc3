// Package hex is a thin hex codec for code outside the core engine:
// harnesses and tests speak hex-encoded ids on the wire, the Engine itself
// never does. Kept separate so nothing in the negentropy package needs to
// import it.
package hex

import (
	"encoding/hex"
	"fmt"
)

// Encode returns the lowercase hex encoding of data.
func Encode(data []byte) string {
	return hex.EncodeToString(data)
}

// Decode parses a hex string back into bytes. It reports the same odd-length
// and invalid-character failures as the reference harness's hex codec.
func Decode(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("hex: decode %q: %w", s, err)
	}

	return b, nil
}
