package store

import (
	"encoding/binary"
	"fmt"
	"math"

	"conductor/internal/logging"
)

// Embedding vectors persist as little-endian float32 blobs. This matches the
// sqlite-vec wire format, so the same column works for linear scans without
// the extension and for vec0 virtual tables with it.

// detectVecExtension probes this store's connection for vec0 virtual-table
// support.
func (s *Store) detectVecExtension() {
	if _, err := s.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(embedding float[4])"); err == nil {
		s.vectorExt = true
		_, _ = s.db.Exec("DROP TABLE IF EXISTS vec_probe")
		logging.Store("sqlite-vec extension detected")
		return
	}
	logging.StoreDebug("sqlite-vec extension not available; linear vector scans only")
}

// HasVectorExtension reports whether vec0 virtual tables are available.
func (s *Store) HasVectorExtension() bool { return s.vectorExt }

// EncodeVector serializes a float32 vector to the blob representation.
func EncodeVector(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// DecodeVector parses a blob back into a float32 vector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}
