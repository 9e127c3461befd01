package resultcache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	errspkg "github.com/drblury/commitlog/internal/runtime/errors"
)

// Compression identifies how a cache entry body is stored. The value is the
// first byte of every entry, so existing values must never change.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a compression name. Empty means zstd.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	case "none":
		return CompressionNone, nil
	default:
		return 0, fmt.Errorf("commitlog: unknown cache compression %q", name)
	}
}

var errIncompressible = errors.New("incompressible")

// zstd encoders and decoders are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("resultcache: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("resultcache: zstd decoder initialization failed: " + err.Error())
	}
}

// encodeEntry frames data as tag, uvarint length, body. Data that does not
// shrink is stored uncompressed.
func encodeEntry(c Compression, data []byte) ([]byte, error) {
	var body []byte
	var err error
	switch c {
	case CompressionNone:
	case CompressionLZ4:
		body, err = compressLZ4(data)
	case CompressionZstd:
		body, err = compressZstd(data)
	default:
		return nil, fmt.Errorf("resultcache: unsupported compression %s", c)
	}
	if errors.Is(err, errIncompressible) || c == CompressionNone {
		c, body, err = CompressionNone, data, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 1+binary.MaxVarintLen64+len(body))
	out = append(out, byte(c))
	out = binary.AppendUvarint(out, uint64(len(data)))
	return append(out, body...), nil
}

// maxEntrySize caps the decoded size of an entry when the codec sets no
// limit of its own.
const maxEntrySize = 1 << 30

// decodeEntry reverses encodeEntry. The recorded size is checked against
// maxSize, or maxEntrySize when maxSize is zero, before anything is
// allocated.
func decodeEntry(entry []byte, maxSize int) ([]byte, error) {
	if len(entry) == 0 {
		return nil, fmt.Errorf("%w: empty cache entry", errspkg.ErrTruncatedMessage)
	}
	tag := Compression(entry[0])
	size, n := binary.Uvarint(entry[1:])
	if n <= 0 {
		return nil, fmt.Errorf("%w: cache entry size", errspkg.ErrMalformedVarint)
	}
	limit := uint64(maxEntrySize)
	if maxSize > 0 && uint64(maxSize) < limit {
		limit = uint64(maxSize)
	}
	if size > limit || size > math.MaxInt {
		return nil, fmt.Errorf("%w: cache entry records %d bytes, limit %d", errspkg.ErrMessageTooLarge, size, limit)
	}
	body := entry[1+n:]

	switch tag {
	case CompressionNone:
		if uint64(len(body)) != size {
			return nil, fmt.Errorf("%w: cache entry holds %d of %d bytes", errspkg.ErrTruncatedMessage, len(body), size)
		}
		return body, nil
	case CompressionLZ4:
		return decompressLZ4(body, int(size))
	case CompressionZstd:
		return decompressZstd(body, int(size))
	default:
		return nil, fmt.Errorf("resultcache: unsupported compression %s", tag)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock reports incompressible input as zero bytes written.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, size int) ([]byte, error) {
	destination := make([]byte, size)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != size {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
	}
	return destination, nil
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, size int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) != size {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), size)
	}
	return result, nil
}
