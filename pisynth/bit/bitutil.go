package bit

import "math/bits"

// IsSet will check if the bit at the specified index is set to 1 or not.
func IsSet(index uint, value uint32) bool {
	return (value>>index)&1 == 1
}

// Set will return the passed value with the bit at the specified index set to 1.
func Set(index uint, value uint32) uint32 {
	return value | (1 << index)
}

// Clear will return the passed value with the bit at the specified index set to 0.
func Clear(index uint, value uint32) uint32 {
	return value &^ (1 << index)
}

// Mask returns a value with the bit at the specified index set.
func Mask(index uint) uint32 {
	return 1 << index
}

// Field extracts width bits starting at shift.
// Example: Field(0b110_100, 3, 3) -> 0b110
func Field(value uint32, shift, width uint) uint32 {
	return (value >> shift) & (1<<width - 1)
}

// SetField replaces width bits starting at shift with field, leaving every
// other bit of value untouched.
func SetField(value uint32, shift, width uint, field uint32) uint32 {
	mask := uint32(1<<width-1) << shift
	return (value &^ mask) | ((field << shift) & mask)
}

// Lowest returns the index of the lowest set bit. ok is false when value is 0.
func Lowest(value uint32) (index uint, ok bool) {
	if value == 0 {
		return 0, false
	}
	return uint(bits.TrailingZeros32(value)), true
}
