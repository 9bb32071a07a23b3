// Package unsafer reinterprets Go values as raw bytes for upload to the GPU.
package unsafer

import (
	"unsafe"
)

// SliceToBytes interprets an arbitrary input slice as a byte slice.
//
// Note that the returned slice points to the same underlying data in memory. It
// does not make a copy. T must not contain pointers.
func SliceToBytes[T any](input []T) []byte {
	if len(input) == 0 {
		return nil
	}
	size := int(unsafe.Sizeof(input[0])) * len(input)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(input))), size)
}

// StructToBytes interprets the memory of *v as a byte slice. Like
// SliceToBytes it does not copy.
func StructToBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

// BytesToUint32 copies code into a slice of words, as shader modules want.
// A trailing partial word is zero padded.
func BytesToUint32(code []byte) []uint32 {
	words := make([]uint32, (len(code)+3)/4)
	copy(SliceToBytes(words), code)
	return words
}
