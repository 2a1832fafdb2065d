// Package store implements the content-addressed, integrity-verified
// file storage underlying every on-disk database artifact: every
// file's name is the URL-safe unpadded Base64 encoding of the
// SHA-256 digest of its uncompressed payload. Writers stream through
// a hash sponge (and optionally a zlib encoder) into a temporary
// file and atomically rename it into place on persist; readers
// stream back through a zlib decoder (if compressed) and a hash
// sponge, verifying the computed digest against the file name after
// the caller has read through EOF.
package store

import (
	"bytes"
	"compress/zlib"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vdberr"
)

var base64Enc = base64.URLEncoding.WithPadding(base64.NoPadding)

// FileSystem abstracts a content-addressed file store. LocalFileSystem
// is the only concrete realization in this module; the abstract
// contract is what the query engines and the builder depend on.
type FileSystem interface {
	// CreateHashedFile opens a new output file whose name will be
	// derived from its contents once persisted.
	CreateHashedFile(compressed bool) (HashedFileOut, error)
	// CreateHashedFileIn is the same, but rooted under a
	// subdirectory of the file system's base path (e.g.
	// "partitions", "codebooks").
	CreateHashedFileIn(dir string, compressed bool) (HashedFileOut, error)
	// OpenHashedFile opens path for reading; compressed selects
	// whether the payload is zlib-framed.
	OpenHashedFile(path string, compressed bool) (HashedFileIn, error)
}

// HashedFileOut is a byte sink whose name will be the hash of its
// contents.
type HashedFileOut interface {
	io.Writer
	// Persist finalizes the hash, creates the target directory if
	// missing, and atomically renames the temporary file to
	// <base64(hash)>.<extension>. Returns the encoded hash.
	Persist(extension string) (string, error)
}

// HashedFileIn is a byte source whose name is the hash of its
// contents.
type HashedFileIn interface {
	io.Reader
	// Verify finishes the hash calculation and compares it against
	// the hash carried by the file name. Call only after reading
	// through EOF.
	Verify() error
}

// LocalFileSystem realizes FileSystem against the local disk.
type LocalFileSystem struct {
	basePath string
}

// NewLocalFileSystem creates a file system rooted at basePath.
func NewLocalFileSystem(basePath string) *LocalFileSystem {
	return &LocalFileSystem{basePath: basePath}
}

func (fs *LocalFileSystem) CreateHashedFile(compressed bool) (HashedFileOut, error) {
	return newLocalHashedFileOut(fs.basePath, compressed)
}

func (fs *LocalFileSystem) CreateHashedFileIn(dir string, compressed bool) (HashedFileOut, error) {
	return newLocalHashedFileOut(filepath.Join(fs.basePath, dir), compressed)
}

func (fs *LocalFileSystem) OpenHashedFile(path string, compressed bool) (HashedFileIn, error) {
	return openLocalHashedFileIn(filepath.Join(fs.basePath, path), compressed)
}

// localHashedFileOut writes to a temporary file, hashing the
// uncompressed payload as it is written and optionally zlib-encoding
// it into the temp file.
type localHashedFileOut struct {
	tmp        *os.File
	targetDir  string
	hasher     hash.Hash
	compressed bool
	zw         *zlib.Writer
}

func newLocalHashedFileOut(targetDir string, compressed bool) (*localHashedFileOut, error) {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, vdberr.WrapIO(err, "creating directory %s", targetDir)
	}
	tmp, err := os.CreateTemp(targetDir, "hashed-*.tmp")
	if err != nil {
		return nil, vdberr.WrapIO(err, "creating temp file in %s", targetDir)
	}
	out := &localHashedFileOut{
		tmp:        tmp,
		targetDir:  targetDir,
		hasher:     sha256.New(),
		compressed: compressed,
	}
	if compressed {
		out.zw = zlib.NewWriter(tmp)
	}
	return out, nil
}

func (o *localHashedFileOut) Write(p []byte) (int, error) {
	o.hasher.Write(p)
	if o.compressed {
		return o.zw.Write(p)
	}
	return o.tmp.Write(p)
}

func (o *localHashedFileOut) Persist(extension string) (string, error) {
	if o.compressed {
		if err := o.zw.Close(); err != nil {
			return "", vdberr.WrapIO(err, "closing zlib writer")
		}
	}
	if err := o.tmp.Sync(); err != nil {
		return "", vdberr.WrapIO(err, "syncing temp file")
	}
	tmpPath := o.tmp.Name()
	if err := o.tmp.Close(); err != nil {
		return "", vdberr.WrapIO(err, "closing temp file")
	}
	hashed := base64Enc.EncodeToString(o.hasher.Sum(nil))
	finalPath := filepath.Join(o.targetDir, fmt.Sprintf("%s.%s", hashed, extension))
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", vdberr.WrapIO(err, "persisting %s", finalPath)
	}
	return hashed, nil
}

// localHashedFileIn reads an entire file up front, decompressing it
// if requested and verifying there are no bytes trailing the zlib
// stream, and hashes the whole payload at open time, yielding the
// digest a streaming reader would have at EOF; reads then serve the
// decompressed payload.
type localHashedFileIn struct {
	expectedHash string
	payload      *bytes.Reader
	hasher       hash.Hash
	verifyErr    error
}

func openLocalHashedFileIn(path string, compressed bool) (*localHashedFileIn, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, vdberr.WrapIO(err, "reading %s", path)
	}
	stem := stemOf(path)

	var payload []byte
	if compressed {
		br := bytes.NewReader(raw)
		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, vdberr.InvalidDataf("opening zlib stream for %s: %v", path, err)
		}
		payload, err = io.ReadAll(zr)
		if err != nil {
			return nil, vdberr.InvalidDataf("decompressing %s: %v", path, err)
		}
		if err := zr.Close(); err != nil {
			return nil, vdberr.InvalidContextf("closing zlib stream for %s: %v", path, err)
		}
		if br.Len() > 0 {
			return nil, vdberr.InvalidDataf("%d trailing bytes after zlib stream in %s", br.Len(), path)
		}
	} else {
		payload = raw
	}

	hasher := sha256.New()
	hasher.Write(payload)

	return &localHashedFileIn{
		expectedHash: stem,
		payload:      bytes.NewReader(payload),
		hasher:       hasher,
	}, nil
}

func (in *localHashedFileIn) Read(p []byte) (int, error) {
	return in.payload.Read(p)
}

func (in *localHashedFileIn) Verify() error {
	got := base64Enc.EncodeToString(in.hasher.Sum(nil))
	if got != in.expectedHash {
		return vdberr.VerificationFailuref("hash discrepancy: expected %s but got %s", in.expectedHash, got)
	}
	return nil
}

func stemOf(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
