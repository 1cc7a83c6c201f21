package codec

import (
	"bytes"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// Compress produces an LZMA stream that Decompress inverts exactly.
// Round-trip identity is a hard invariant, not best-effort.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, &CodecError{Op: "compress", Cause: err}
	}
	if _, err := w.Write(data); err != nil {
		return nil, &CodecError{Op: "compress", Cause: err}
	}
	if err := w.Close(); err != nil {
		return nil, &CodecError{Op: "compress", Cause: err}
	}

	return buf.Bytes(), nil
}

// Decompress reverses Compress into the raw container bytes. Truncated or
// corrupt input fails with a CodecError.
func Decompress(data []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, &CodecError{Op: "decompress", Cause: err}
	}

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, &CodecError{Op: "decompress", Cause: err}
	}

	return out, nil
}
