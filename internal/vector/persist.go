package vector

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	apperrors "github.com/querytube/querytube/internal/errors"
	"github.com/querytube/querytube/internal/models"
)

// On-disk layout: a vector file and a companion metadata file, always written
// and read as a pair. The vector file is binary little-endian:
//
//	magic (4) | version (4) | metric code (4) | dimension (4) | count (4) | count*dimension float32s
//
// The metadata file is JSON with one row per vector, in vector order.
const (
	fileMagic   = uint32(0x51545658) // "QTVX"
	fileVersion = uint32(1)
)

type metadataFile struct {
	ModelName string             `json:"model_name"`
	Metric    Metric             `json:"metric"`
	Dimension int                `json:"dimension"`
	Rows      []models.VideoMeta `json:"rows"`
}

// Persist writes both snapshot artifacts. Each file is written to a temp file
// in the target directory and renamed into place, so a crash mid-write leaves
// any existing on-disk snapshot untouched.
func (s *Snapshot) Persist(indexPath, metaPath string) error {
	for _, p := range []string{indexPath, metaPath} {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return apperrors.Wrap(err, apperrors.CodeIO, "create snapshot directory")
			}
		}
	}

	tmpIndex, err := s.writeVectorFile(indexPath)
	if err != nil {
		return err
	}
	tmpMeta, err := s.writeMetadataFile(metaPath)
	if err != nil {
		_ = os.Remove(tmpIndex)
		return err
	}

	if err := os.Rename(tmpMeta, metaPath); err != nil {
		_ = os.Remove(tmpIndex)
		_ = os.Remove(tmpMeta)
		return apperrors.Wrap(err, apperrors.CodeIO, "replace metadata file")
	}
	if err := os.Rename(tmpIndex, indexPath); err != nil {
		_ = os.Remove(tmpIndex)
		return apperrors.Wrap(err, apperrors.CodeIO, "replace vector file")
	}
	return nil
}

func (s *Snapshot) writeVectorFile(path string) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeIO, "create temp vector file")
	}
	tmp := f.Name()
	cleanup := func(werr error, msg string) (string, error) {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", apperrors.Wrap(werr, apperrors.CodeIO, msg)
	}

	header := []uint32{fileMagic, fileVersion, metricCodes[s.metric], uint32(s.dimension), uint32(len(s.vectors))}
	for _, v := range header {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			return cleanup(err, "write vector file header")
		}
	}
	buf := make([]byte, s.dimension*4)
	for _, vec := range s.vectors {
		for i, v := range vec {
			binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(v))
		}
		if _, err := f.Write(buf); err != nil {
			return cleanup(err, "write vectors")
		}
	}
	if err := f.Sync(); err != nil {
		return cleanup(err, "sync vector file")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", apperrors.Wrap(err, apperrors.CodeIO, "close vector file")
	}
	return tmp, nil
}

func (s *Snapshot) writeMetadataFile(path string) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeIO, "create temp metadata file")
	}
	tmp := f.Name()

	meta := metadataFile{
		ModelName: s.modelName,
		Metric:    s.metric,
		Dimension: s.dimension,
		Rows:      s.meta,
	}
	enc := json.NewEncoder(f)
	if err := enc.Encode(&meta); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", apperrors.Wrap(err, apperrors.CodeIO, "encode metadata")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", apperrors.Wrap(err, apperrors.CodeIO, "sync metadata file")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", apperrors.Wrap(err, apperrors.CodeIO, "close metadata file")
	}
	return tmp, nil
}

// Load reads a snapshot pair from disk. A missing vector file is
// INDEX_NOT_FOUND; a missing metadata file is METADATA_NOT_FOUND. A metadata
// row count that disagrees with the vector count is DIMENSION_MISMATCH and
// always fatal: positional alignment cannot be reconstructed.
func Load(indexPath, metaPath string) (*Snapshot, error) {
	f, err := os.Open(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Newf(apperrors.CodeIndexNotFound, "vector file not found: %s", indexPath)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeIO, "open vector file")
	}
	defer f.Close()

	var magic, version, metricCode, dim, count uint32
	for _, v := range []*uint32{&magic, &version, &metricCode, &dim, &count} {
		if err := binary.Read(f, binary.LittleEndian, v); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeIO, "read vector file header")
		}
	}
	if magic != fileMagic {
		return nil, apperrors.Newf(apperrors.CodeIO, "not a vector index file: %s", indexPath)
	}
	if version != fileVersion {
		return nil, apperrors.Newf(apperrors.CodeIO, "unsupported vector file version %d", version)
	}
	metric, ok := metricFromCode(metricCode)
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeIO, "unknown metric code %d in vector file", metricCode)
	}

	vectors := make([][]float32, count)
	buf := make([]byte, dim*4)
	for i := range vectors {
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeIO, fmt.Sprintf("read vector %d", i))
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4 : (j+1)*4]))
		}
		vectors[i] = vec
	}

	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Newf(apperrors.CodeMetadataNotFound, "metadata file not found: %s", metaPath)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeIO, "read metadata file")
	}
	var meta metadataFile
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeIO, "decode metadata file")
	}

	if len(meta.Rows) != int(count) {
		return nil, apperrors.Newf(apperrors.CodeDimensionMismatch,
			"metadata has %d rows but vector file has %d vectors", len(meta.Rows), count)
	}
	if meta.Dimension != 0 && meta.Dimension != int(dim) {
		return nil, apperrors.Newf(apperrors.CodeDimensionMismatch,
			"metadata dimension %d disagrees with vector file dimension %d", meta.Dimension, dim)
	}
	if meta.Metric != "" && meta.Metric != metric {
		return nil, apperrors.Newf(apperrors.CodeIO,
			"metadata metric %q disagrees with vector file metric %q", meta.Metric, metric)
	}

	return &Snapshot{
		metric:    metric,
		dimension: int(dim),
		modelName: meta.ModelName,
		vectors:   vectors,
		meta:      meta.Rows,
	}, nil
}

// Exists reports whether both snapshot artifacts are present on disk.
func Exists(indexPath, metaPath string) bool {
	if _, err := os.Stat(indexPath); err != nil {
		return false
	}
	if _, err := os.Stat(metaPath); err != nil {
		return false
	}
	return true
}
