package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// Snapshot payload codecs.
const (
	CodecNone   = "none"
	CodecZstd   = "zstd"
	CodecBrotli = "brotli"
)

// zstd encoders and decoders are safe for concurrent EncodeAll/DecodeAll.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// encodeSnapshot compresses a dump with codec.
func encodeSnapshot(codec string, raw []byte) ([]byte, error) {
	switch codec {
	case CodecNone, "":
		return append([]byte(nil), raw...), nil
	case CodecZstd:
		return zstdEncoder.EncodeAll(raw, nil), nil
	case CodecBrotli:
		var buf bytes.Buffer
		bw := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
		if _, err := bw.Write(raw); err != nil {
			return nil, err
		}
		if err := bw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown snapshot codec %q", codec)
	}
}

// decodeSnapshot reverses encodeSnapshot.
func decodeSnapshot(codec string, data []byte) ([]byte, error) {
	switch codec {
	case CodecNone, "":
		return data, nil
	case CodecZstd:
		return zstdDecoder.DecodeAll(data, nil)
	case CodecBrotli:
		return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	default:
		return nil, fmt.Errorf("unknown snapshot codec %q", codec)
	}
}
