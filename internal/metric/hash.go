package metric

import (
	"math/bits"

	"github.com/corona10/goimagehash"
)

// hashBits is the width of the fingerprints compared by Hamming and ImageHash.
const hashBits = 64

// Hamming returns the number of differing bits between two 64-bit hashes.
func Hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// ImageHash compares two perceptual hashes. Hashes of different kinds (or a
// nil hash) are not comparable and are placed one unit beyond the largest
// possible bit distance, so they never match a query within 64 bits of the
// other kind. A nil hash is zero distance only from another nil hash.
func ImageHash(a, b *goimagehash.ImageHash) int {
	if a == nil || b == nil {
		if a == b {
			return 0
		}
		return hashBits + 1
	}
	d, err := a.Distance(b)
	if err != nil {
		return hashBits + 1
	}
	return d
}
