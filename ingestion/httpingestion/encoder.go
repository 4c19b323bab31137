package httpingestion

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/relex/logchannel/base"
	"github.com/relex/logchannel/util"
)

const maxPooledBufferBytes = 1024 * 1024

var bufferPool = util.NewPool(func() *bytes.Buffer {
	return bytes.NewBuffer(make([]byte, 0, 64*1024))
})

var gzipWriterPool = util.NewPool(func() *gzip.Writer {
	w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
	return w
})

// encodeContainer serializes a container to JSON request body, optionally gzipped
//
// The returned slice is owned by the caller
func encodeContainer(container base.LogContainer, compress bool) ([]byte, error) {
	buf := bufferPool.Get()
	buf.Reset()
	defer putBuffer(buf)

	if !compress {
		if err := json.NewEncoder(buf).Encode(container); err != nil {
			return nil, fmt.Errorf("%w: %s", errEncoding, err.Error())
		}
		return append([]byte(nil), buf.Bytes()...), nil
	}

	gz := gzipWriterPool.Get()
	defer gzipWriterPool.Put(gz)
	gz.Reset(buf)
	if err := json.NewEncoder(gz).Encode(container); err != nil {
		_ = gz.Close()
		return nil, fmt.Errorf("%w: %s", errEncoding, err.Error())
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("%w: gzip: %s", errEncoding, err.Error())
	}
	return append([]byte(nil), buf.Bytes()...), nil
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBufferBytes {
		return
	}
	bufferPool.Put(buf)
}
