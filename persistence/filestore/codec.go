package filestore

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
	"github.com/relex/logchannel/base"
	"github.com/relex/logchannel/defs"
	"github.com/vmihailenco/msgpack/v4"
)

// codec tag as the first byte of log files
const (
	codecMsgpack    byte = 'm' // raw msgpack
	codecMsgpackLZ4 byte = 'z' // uvarint length of msgpack + lz4 block of msgpack
)

var errCorruptFile = errors.New("corrupt log file")

// encodeLog serializes a log into file contents, compressed if enabled and worthwhile
func encodeLog(log *base.Log, compress bool) ([]byte, error) {
	packed, err := msgpack.Marshal(log)
	if err != nil {
		return nil, fmt.Errorf("msgpack: %w", err)
	}

	if compress && len(packed) >= defs.StorageCompressMinBytes {
		header := make([]byte, 1+binary.MaxVarintLen64)
		header[0] = codecMsgpackLZ4
		headerLen := 1 + binary.PutUvarint(header[1:], uint64(len(packed)))

		buf := make([]byte, headerLen+lz4.CompressBlockBound(len(packed)))
		copy(buf, header[:headerLen])
		written, cerr := lz4.CompressBlock(packed, buf[headerLen:], nil)
		if cerr != nil {
			return nil, fmt.Errorf("lz4: %w", cerr)
		}
		// 0 means incompressible
		if written > 0 && headerLen+written < 1+len(packed) {
			return buf[:headerLen+written], nil
		}
	}

	buf := make([]byte, 1+len(packed))
	buf[0] = codecMsgpack
	copy(buf[1:], packed)
	return buf, nil
}

// decodeLog deserializes file contents made by encodeLog
func decodeLog(data []byte) (*base.Log, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: length=%d", errCorruptFile, len(data))
	}

	var packed []byte
	switch data[0] {
	case codecMsgpack:
		packed = data[1:]
	case codecMsgpackLZ4:
		packedLen, headerLen := binary.Uvarint(data[1:])
		if headerLen <= 0 || packedLen > uint64(defs.StorageMaxLogBytes)*2 {
			return nil, fmt.Errorf("%w: invalid length header", errCorruptFile)
		}
		packed = make([]byte, packedLen)
		read, err := lz4.UncompressBlock(data[1+headerLen:], packed)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %s", errCorruptFile, err.Error())
		}
		if read != len(packed) {
			return nil, fmt.Errorf("%w: lz4: got %d bytes, expected %d", errCorruptFile, read, len(packed))
		}
	default:
		return nil, fmt.Errorf("%w: unknown codec 0x%02x", errCorruptFile, data[0])
	}

	log := &base.Log{}
	if err := msgpack.Unmarshal(packed, log); err != nil {
		return nil, fmt.Errorf("%w: msgpack: %s", errCorruptFile, err.Error())
	}
	return log, nil
}
