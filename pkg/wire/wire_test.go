package wire

import (
	"bytes"
	"testing"
)

func TestDatabaseRoundTrip(t *testing.T) {
	d := &Database{
		VectorSize:           8,
		NumPartitions:        4,
		NumDivisions:         2,
		NumCodes:             16,
		PartitionIDs:         []string{"p0", "p1", "p2", "p3"},
		PartitionCentroidsID: "centroids",
		CodebookIDs:          []string{"c0", "c1"},
		AttributesLogIDs:     []string{"a0", "a1", "a2", "a3"},
		AttributeNames:       []string{"label", "id"},
	}
	got, err := UnmarshalDatabase(d.Marshal())
	if err != nil {
		t.Fatal(err)
	}
	if got.VectorSize != d.VectorSize || got.NumPartitions != d.NumPartitions ||
		got.NumDivisions != d.NumDivisions || got.NumCodes != d.NumCodes ||
		got.PartitionCentroidsID != d.PartitionCentroidsID {
		t.Fatalf("scalar field mismatch: got %+v want %+v", got, d)
	}
	if len(got.PartitionIDs) != len(d.PartitionIDs) {
		t.Fatalf("partition_ids length mismatch: %v vs %v", got.PartitionIDs, d.PartitionIDs)
	}
	for i := range d.PartitionIDs {
		if got.PartitionIDs[i] != d.PartitionIDs[i] {
			t.Fatalf("partition_ids[%d] = %v, want %v", i, got.PartitionIDs[i], d.PartitionIDs[i])
		}
	}
}

func TestVectorSetRoundTrip(t *testing.T) {
	vs := &VectorSet{VectorSize: 4, Data: []float32{1, -2.5, 0, 3.14159}}
	got, err := UnmarshalVectorSet(vs.Marshal())
	if err != nil {
		t.Fatal(err)
	}
	if got.VectorSize != vs.VectorSize {
		t.Fatalf("vector_size mismatch")
	}
	for i := range vs.Data {
		if got.Data[i] != vs.Data[i] {
			t.Fatalf("data[%d] = %v, want %v", i, got.Data[i], vs.Data[i])
		}
	}
}

func TestEncodedVectorSetRoundTrip(t *testing.T) {
	e := &EncodedVectorSet{VectorSize: 3, Data: []uint32{0, 255, 1 << 20}}
	got, err := UnmarshalEncodedVectorSet(e.Marshal())
	if err != nil {
		t.Fatal(err)
	}
	for i := range e.Data {
		if got.Data[i] != e.Data[i] {
			t.Fatalf("data[%d] = %v, want %v", i, got.Data[i], e.Data[i])
		}
	}
}

func TestPartitionRoundTrip(t *testing.T) {
	p := &Partition{
		VectorSize:   4,
		NumDivisions: 2,
		Centroid:     []float32{1, 2, 3, 4},
		VectorIDs:    [][]byte{bytes.Repeat([]byte{1}, 16), bytes.Repeat([]byte{2}, 16)},
		EncodedVectors: &EncodedVectorSet{
			VectorSize: 2,
			Data:       []uint32{3, 7, 1, 2},
		},
	}
	got, err := UnmarshalPartition(p.Marshal())
	if err != nil {
		t.Fatal(err)
	}
	if len(got.VectorIDs) != 2 || !bytes.Equal(got.VectorIDs[0], p.VectorIDs[0]) {
		t.Fatalf("vector_ids mismatch: %v", got.VectorIDs)
	}
	if got.EncodedVectors == nil || len(got.EncodedVectors.Data) != 4 {
		t.Fatalf("encoded_vectors mismatch: %+v", got.EncodedVectors)
	}
}

func TestAttributesLogRoundTrip(t *testing.T) {
	log := &AttributesLog{
		PartitionID: "part-0",
		Entries: []*SetAttribute{
			{VectorID: bytes.Repeat([]byte{9}, 16), NameIndex: 0, HasString: true, StringValue: "cat"},
			{VectorID: bytes.Repeat([]byte{8}, 16), NameIndex: 1, HasUint64: true, Uint64Value: 42},
		},
	}
	got, err := UnmarshalAttributesLog(log.Marshal())
	if err != nil {
		t.Fatal(err)
	}
	if got.PartitionID != log.PartitionID || len(got.Entries) != 2 {
		t.Fatalf("got %+v", got)
	}
	if !got.Entries[0].HasString || got.Entries[0].StringValue != "cat" {
		t.Fatalf("entry 0 = %+v", got.Entries[0])
	}
	if !got.Entries[1].HasUint64 || got.Entries[1].Uint64Value != 42 {
		t.Fatalf("entry 1 = %+v", got.Entries[1])
	}
}

func TestMalformedBytesFailsWithProtobufError(t *testing.T) {
	if _, err := UnmarshalDatabase([]byte{0xFF}); err == nil {
		t.Fatal("expected an error decoding malformed bytes")
	}
}
