package crypto

import "bytes"

var (
	wrapPrefix  = []byte(WrapPrefix)
	wrapPostfix = []byte(WrapPostfix)
)

// IsWrapped reports whether data already carries the <Bytes> envelope.
func IsWrapped(data []byte) bool {
	return len(data) >= len(wrapPrefix)+len(wrapPostfix) &&
		bytes.HasPrefix(data, wrapPrefix) &&
		bytes.HasSuffix(data, wrapPostfix)
}

// WrapBytes applies the <Bytes>…</Bytes> domain-separation envelope so raw
// data handed to a signer can never be mistaken for a protocol message.
// Already wrapped input is returned as a copy, unchanged.
func WrapBytes(data []byte) []byte {
	if IsWrapped(data) {
		return bytes.Clone(data)
	}
	return EncloseBytes(data)
}

// EncloseBytes always adds one envelope layer, even around input that is
// already wrapped. Message plaintexts use it so that decryption can strip
// exactly one layer and return the original data.
func EncloseBytes(data []byte) []byte {
	out := make([]byte, 0, len(wrapPrefix)+len(data)+len(wrapPostfix))
	out = append(out, wrapPrefix...)
	out = append(out, data...)
	return append(out, wrapPostfix...)
}

// UnwrapBytes removes one envelope layer if present, otherwise returns data
// unchanged.
func UnwrapBytes(data []byte) []byte {
	if !IsWrapped(data) {
		return data
	}
	return data[len(wrapPrefix) : len(data)-len(wrapPostfix)]
}
