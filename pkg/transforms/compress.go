package transforms

import (
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/aretw0/veneer/pkg/core"
	"github.com/aretw0/veneer/pkg/transform"
)

// CompressedPrefix marks a compressed field value.
const CompressedPrefix = "zstd:"

// Compress returns hooks that store the given fields zstd-compressed and
// restore them on the way out. With no fields, every user field is
// compressed. Values smaller than minSize bytes once encoded are kept as is.
func Compress(minSize int, fields ...string) (transform.Config, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return transform.Config{}, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return transform.Config{}, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	fields = append([]string(nil), fields...)

	codec := fieldCodec{
		prefix: CompressedPrefix,
		seal: func(_ string, plain []byte) ([]byte, error) {
			return enc.EncodeAll(plain, nil), nil
		},
		open: func(_ string, sealed []byte) ([]byte, error) {
			return dec.DecodeAll(sealed, nil)
		},
	}

	return transform.Config{
		Incoming: func(_ context.Context, doc core.Document, _ *core.Args, _ transform.Op) (*transform.IncomingResult, error) {
			out, err := codec.sealDoc(doc, largeFields(doc, fields, minSize))
			if err != nil {
				return nil, err
			}
			return &transform.IncomingResult{Doc: out}, nil
		},
		Outgoing: func(_ context.Context, doc core.Document, _ *core.Args, _ transform.Op) (core.Document, error) {
			return codec.openDoc(doc)
		},
	}, nil
}

// largeFields narrows the targets of doc to values at least minSize bytes
// long once JSON-encoded.
func largeFields(doc core.Document, fields []string, minSize int) []string {
	all := targets(doc, fields)
	if minSize <= 0 {
		return all
	}
	out := all[:0]
	for _, f := range all {
		if encodedSize(doc[f]) >= minSize {
			out = append(out, f)
		}
	}
	return out
}
