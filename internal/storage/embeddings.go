package storage

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"

	"github.com/hyperjump/regclause/internal/vector"
)

// Fingerprint identifies the clause texts an embedding matrix was computed from.
type Fingerprint [32]byte

var embeddingMagic = [4]byte{'R', 'C', 'E', 'M'}

const embeddingFormatVersion uint32 = 1

// headerSize is magic (4) + version (4) + rows (4) + dim (4) + fingerprint (32).
const headerSize = 4 + 4 + 4 + 4 + 32

// EmbeddingCache stores one embedding matrix in a binary file.
// Format: magic, version, rows, dim (uint32 little endian), fingerprint,
// then rows*dim float32 values row-major.
type EmbeddingCache struct {
	path string
}

// NewEmbeddingCache returns a cache backed by the file at path.
func NewEmbeddingCache(path string) *EmbeddingCache {
	return &EmbeddingCache{path: path}
}

// Path returns the cache file path.
func (c *EmbeddingCache) Path() string { return c.path }

// Save writes m and its fingerprint atomically.
func (c *EmbeddingCache) Save(m *vector.Matrix, fp Fingerprint) error {
	if m == nil {
		return fmt.Errorf("save embeddings: nil matrix")
	}
	return writeFileAtomic(c.path, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		header := make([]byte, 0, headerSize)
		header = append(header, embeddingMagic[:]...)
		header = binary.LittleEndian.AppendUint32(header, embeddingFormatVersion)
		header = binary.LittleEndian.AppendUint32(header, uint32(m.Rows()))
		header = binary.LittleEndian.AppendUint32(header, uint32(m.Dim()))
		header = append(header, fp[:]...)
		if _, err := bw.Write(header); err != nil {
			return fmt.Errorf("write embeddings header: %w", err)
		}
		if _, err := bw.Write(float32SliceToBytes(m.Data())); err != nil {
			return fmt.Errorf("write embeddings: %w", err)
		}
		return bw.Flush()
	})
}

// Load reads the cached matrix and its fingerprint. A missing file wraps ErrCacheMiss;
// a file with a bad header or a length that does not match its shape wraps ErrCacheCorrupt.
func (c *EmbeddingCache) Load() (*vector.Matrix, Fingerprint, error) {
	var fp Fingerprint
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fp, fmt.Errorf("%w: %s", ErrCacheMiss, c.path)
		}
		return nil, fp, fmt.Errorf("read embeddings cache: %w", err)
	}
	if len(data) < headerSize || !bytes.Equal(data[:4], embeddingMagic[:]) {
		return nil, fp, fmt.Errorf("%w: %s: bad header", ErrCacheCorrupt, c.path)
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != embeddingFormatVersion {
		return nil, fp, fmt.Errorf("%w: %s: unsupported version %d", ErrCacheCorrupt, c.path, v)
	}
	rows := int(binary.LittleEndian.Uint32(data[8:12]))
	dim := int(binary.LittleEndian.Uint32(data[12:16]))
	copy(fp[:], data[16:headerSize])

	body := data[headerSize:]
	if dim == 0 || len(body) != rows*dim*4 {
		return nil, fp, fmt.Errorf("%w: %s: %d bytes for shape %dx%d", ErrCacheCorrupt, c.path, len(body), rows, dim)
	}
	m, err := vector.FromFlat(rows, dim, bytesToFloat32Slice(body))
	if err != nil {
		return nil, fp, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}
	return m, fp, nil
}

// Remove deletes the cache file. A missing file is not an error.
func (c *EmbeddingCache) Remove() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove embeddings cache: %w", err)
	}
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
