package native

import "unsafe"

// unsafeSlice views the memory at p as a []byte of length n. It exists
// solely so tests can simulate a native function writing its response into
// the caller-supplied output buffer without a real dlopen'd library.
func unsafeSlice(p *byte, n int) []byte {
	return unsafe.Slice(p, n)
}
