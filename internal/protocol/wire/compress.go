package wire

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// maxDecompressed bounds inflated payloads.
const maxDecompressed = 4 << 20

var errTooLarge = errors.New("wire: decompressed payload too large")

var lz4Writers = sync.Pool{New: func() any { return lz4.NewWriter(nil) }}
var lz4Readers = sync.Pool{New: func() any { return lz4.NewReader(nil) }}

func compressLZ4(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4Writers.Get().(*lz4.Writer)
	defer lz4Writers.Put(w)

	w.Reset(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressLZ4(data []byte) ([]byte, error) {
	r := lz4Readers.Get().(*lz4.Reader)
	defer lz4Readers.Put(r)

	r.Reset(bytes.NewReader(data))
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, maxDecompressed+1))
	if err != nil {
		return nil, err
	}
	if n > maxDecompressed {
		return nil, errTooLarge
	}
	return buf.Bytes(), nil
}
