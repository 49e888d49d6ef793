package types

import "bytes"

// ToNetascii turns LF line endings into CR LF.
func ToNetascii(b []byte) []byte {
	return bytes.ReplaceAll(b, []byte("\n"), []byte("\r\n"))
}
