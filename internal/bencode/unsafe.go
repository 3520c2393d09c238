package bencode

import "unsafe"

// bytesToString views b as a string without copying. The result must not
// outlive b or be retained past the call that consumes it.
func bytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}
