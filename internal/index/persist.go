package index

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// Artifact layout: magic, format version, metric tag, dimensions, entry
// count, then per entry a length-prefixed JSON chunk record followed by the
// raw little-endian float32 vector. Vectors round-trip bit-exactly.
const (
	artifactMagic   = "DQIX"
	artifactVersion = uint32(1)
)

var metricTags = map[Metric]uint8{
	MetricCosine:    0,
	MetricEuclidean: 1,
}

// Persist writes the index to a single file at path, creating parent
// directories as needed.
func (m *Memory) Persist(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write([]byte(artifactMagic)); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	header := []any{artifactVersion, metricTags[m.metric], uint32(m.dims), uint32(len(m.chunks))}
	for _, v := range header {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for i, chunk := range m.chunks {
		meta, err := json.Marshal(chunk)
		if err != nil {
			return fmt.Errorf("marshal chunk %d: %w", i, err)
		}
		if err := binary.Write(f, binary.LittleEndian, uint32(len(meta))); err != nil {
			return fmt.Errorf("write chunk %d meta len: %w", i, err)
		}
		if _, err := f.Write(meta); err != nil {
			return fmt.Errorf("write chunk %d meta: %w", i, err)
		}
		if _, err := f.Write(float32SliceToBytes(m.vectors[i])); err != nil {
			return fmt.Errorf("write chunk %d vector: %w", i, err)
		}
	}
	return nil
}

// Open reads a persisted index artifact back into a Memory index, validating
// magic and format version before use.
func Open(path string) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	magic := make([]byte, len(artifactMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != artifactMagic {
		return nil, fmt.Errorf("not an index artifact: bad magic %q", magic)
	}

	var version uint32
	var metricTag uint8
	var dims, count uint32
	for _, v := range []any{&version, &metricTag, &dims, &count} {
		if err := binary.Read(f, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
	}
	if version != artifactVersion {
		return nil, fmt.Errorf("unsupported artifact version %d", version)
	}

	metric := MetricCosine
	for m, tag := range metricTags {
		if tag == metricTag {
			metric = m
		}
	}

	idx := NewMemory(metric)
	idx.dims = int(dims)
	idx.chunks = make([]Chunk, 0, count)
	idx.vectors = make([][]float32, 0, count)

	vecBuf := make([]byte, dims*4)
	for i := uint32(0); i < count; i++ {
		var metaLen uint32
		if err := binary.Read(f, binary.LittleEndian, &metaLen); err != nil {
			return nil, fmt.Errorf("read chunk %d meta len: %w", i, err)
		}
		meta := make([]byte, metaLen)
		if _, err := io.ReadFull(f, meta); err != nil {
			return nil, fmt.Errorf("read chunk %d meta: %w", i, err)
		}
		var chunk Chunk
		if err := json.Unmarshal(meta, &chunk); err != nil {
			return nil, fmt.Errorf("unmarshal chunk %d: %w", i, err)
		}
		if _, err := io.ReadFull(f, vecBuf); err != nil {
			return nil, fmt.Errorf("read chunk %d vector: %w", i, err)
		}
		idx.chunks = append(idx.chunks, chunk)
		idx.vectors = append(idx.vectors, bytesToFloat32Slice(vecBuf))
	}

	return idx, nil
}

func float32SliceToBytes(s []float32) []byte {
	out := make([]byte, len(s)*4)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*4:(i+1)*4], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : (i+1)*4]))
	}
	return out
}
