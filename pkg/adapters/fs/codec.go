package fs

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/aretw0/veneer/internal/store"
)

const compressedExt = ".zst"

// recordCodec encodes revision trees for the system directory, optionally
// compressed with zstd. Compressed files carry a ".zst" suffix so both
// encodings can be read whatever the current setting is.
type recordCodec struct {
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

func newRecordCodec(compress bool) (*recordCodec, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	c := &recordCodec{compress: compress, dec: dec}
	if compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			dec.Close()
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		c.enc = enc
	}
	return c, nil
}

// ext returns the suffix appended to record file names.
func (c *recordCodec) ext() string {
	if c.compress {
		return ".json" + compressedExt
	}
	return ".json"
}

func (c *recordCodec) encode(rec *store.Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
	}
	if c.compress {
		return c.enc.EncodeAll(data, nil), nil
	}
	return data, nil
}

func (c *recordCodec) decode(name string, data []byte) (*store.Record, error) {
	if strings.HasSuffix(name, compressedExt) {
		raw, err := c.dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress %s: %w", name, err)
		}
		data = raw
	}
	var rec store.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	if rec.Revs == nil {
		return nil, fmt.Errorf("record %s has no revisions", name)
	}
	return &rec, nil
}

func (c *recordCodec) close() {
	if c.enc != nil {
		_ = c.enc.Close()
	}
	c.dec.Close()
}
