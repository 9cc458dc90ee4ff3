package storage

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// ZstdCompression compresses whole snapshots in one shot.
type ZstdCompression struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func NewZstdCompressor() (*ZstdCompression, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &ZstdCompression{encoder: encoder, decoder: decoder}, nil
}

func (z *ZstdCompression) Compress(val []byte) []byte {
	return z.encoder.EncodeAll(val, make([]byte, 0, len(val)/2))
}

func (z *ZstdCompression) Decompress(val []byte) ([]byte, error) {
	return z.decoder.DecodeAll(val, nil)
}

func (z *ZstdCompression) Close() {
	z.encoder.Close()
	z.decoder.Close()
}

var sharedCodec = sync.OnceValues(NewZstdCompressor)

// Decompress decodes a whole zstd frame with a process-wide codec.
func Decompress(data []byte) ([]byte, error) {
	codec, err := sharedCodec()
	if err != nil {
		return nil, err
	}
	return codec.Decompress(data)
}

// IsZstd reports whether data starts with a zstd frame header.
func IsZstd(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}
