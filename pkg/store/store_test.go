package store

import (
	"bytes"
	"compress/zlib"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadRoundTripUncompressed(t *testing.T) {
	dir := t.TempDir()
	fs := NewLocalFileSystem(dir)

	out, err := fs.CreateHashedFile(false)
	if err != nil {
		t.Fatal(err)
	}
	payload := []byte("hello vector database")
	if _, err := out.Write(payload); err != nil {
		t.Fatal(err)
	}
	hash, err := out.Persist("binpb")
	if err != nil {
		t.Fatal(err)
	}

	in, err := fs.OpenHashedFile(hash+".binpb", false)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(in)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
	if err := in.Verify(); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
}

func TestWriteReadRoundTripCompressed(t *testing.T) {
	dir := t.TempDir()
	fs := NewLocalFileSystem(dir)

	out, err := fs.CreateHashedFile(true)
	if err != nil {
		t.Fatal(err)
	}
	payload := bytes.Repeat([]byte("compress me please "), 100)
	if _, err := out.Write(payload); err != nil {
		t.Fatal(err)
	}
	hash, err := out.Persist("binpb")
	if err != nil {
		t.Fatal(err)
	}

	in, err := fs.OpenHashedFile(hash+".binpb", true)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(in)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch, got %d bytes want %d", len(got), len(payload))
	}
	if err := in.Verify(); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
}

func TestTamperedFileFailsVerification(t *testing.T) {
	dir := t.TempDir()
	fs := NewLocalFileSystem(dir)
	out, err := fs.CreateHashedFile(false)
	if err != nil {
		t.Fatal(err)
	}
	out.Write([]byte("original payload"))
	hash, err := out.Persist("binpb")
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, hash+".binpb")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[0] ^= 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	in, err := fs.OpenHashedFile(hash+".binpb", false)
	if err != nil {
		t.Fatal(err)
	}
	io.ReadAll(in)
	if err := in.Verify(); err == nil {
		t.Fatal("expected VerificationFailure after tampering")
	}
}

func TestTrailingBytesAfterZlibStreamIsInvalidData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deadbeef.binpb")

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write([]byte("payload"))
	zw.Close()
	buf.Write([]byte("trailing garbage"))

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	fs := NewLocalFileSystem(dir)
	_, err := fs.OpenHashedFile("deadbeef.binpb", true)
	if err == nil {
		t.Fatal("expected InvalidData for trailing bytes after zlib stream")
	}
}
