package ivfdb

import (
	"io"

	"github.com/therealutkarshpriyadarshi/vectordb/pkg/attrs"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/store"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/vdberr"
	"github.com/therealutkarshpriyadarshi/vectordb/pkg/wire"
)

// Persist writes every artifact file under fs and returns the
// content-addressed hash of the top-level manifest, which is the
// handle a caller passes to Open later.
func (a *Artifacts) Persist(fs store.FileSystem) (string, error) {
	codebookIDs := make([]string, len(a.Codebooks))
	subspaceSize := a.VectorSize / a.NumDivisions
	for j, cb := range a.Codebooks {
		msg := &wire.VectorSet{VectorSize: uint32(subspaceSize), Data: cb.Centroids.Data()}
		hash, err := writeMessage(fs, "codebooks", msg.Marshal(), false)
		if err != nil {
			return "", err
		}
		codebookIDs[j] = hash
	}

	centroidsMsg := &wire.VectorSet{VectorSize: uint32(a.VectorSize), Data: a.PartitionCentroids.Data()}
	centroidsHash, err := writeMessage(fs, "partitions", centroidsMsg.Marshal(), false)
	if err != nil {
		return "", err
	}

	partitionIDs := make([]string, a.NumPartitions)
	for p := 0; p < a.NumPartitions; p++ {
		ids := a.PartitionVectorIDs[p]
		codes := a.PartitionEncodedVectors[p]
		flatCodes := make([]uint32, 0, len(codes)*a.NumDivisions)
		for _, c := range codes {
			flatCodes = append(flatCodes, c...)
		}
		idBytes := make([][]byte, len(ids))
		for i, id := range ids {
			b := id
			idBytes[i] = append([]byte(nil), b[:]...)
		}
		msg := &wire.Partition{
			VectorSize:   uint32(a.VectorSize),
			NumDivisions: uint32(a.NumDivisions),
			Centroid:     a.PartitionCentroids.Get(p),
			VectorIDs:    idBytes,
			EncodedVectors: &wire.EncodedVectorSet{
				VectorSize: uint32(a.NumDivisions),
				Data:       flatCodes,
			},
		}
		hash, err := writeMessage(fs, "partitions", msg.Marshal(), true)
		if err != nil {
			return "", err
		}
		partitionIDs[p] = hash
	}

	attrLogIDs := make([]string, a.NumPartitions)
	for p := 0; p < a.NumPartitions; p++ {
		entries := make([]*wire.SetAttribute, 0, len(a.PartitionAttributeEntries[p]))
		for _, e := range a.PartitionAttributeEntries[p] {
			idCopy := e.VectorID
			se := &wire.SetAttribute{
				VectorID:  append([]byte(nil), idCopy[:]...),
				NameIndex: a.AttributeNames.IndexOf(e.Name),
			}
			switch e.Value.Kind {
			case attrs.KindString:
				se.HasString = true
				se.StringValue = e.Value.Str
			default:
				se.HasUint64 = true
				se.Uint64Value = e.Value.U64
			}
			entries = append(entries, se)
		}
		msg := &wire.AttributesLog{PartitionID: partitionIDs[p], Entries: entries}
		hash, err := writeMessage(fs, "attributes", msg.Marshal(), true)
		if err != nil {
			return "", err
		}
		attrLogIDs[p] = hash
	}

	manifest := &wire.Database{
		VectorSize:           uint32(a.VectorSize),
		NumPartitions:        uint32(a.NumPartitions),
		NumDivisions:         uint32(a.NumDivisions),
		NumCodes:             uint32(a.NumCodes),
		PartitionIDs:         partitionIDs,
		PartitionCentroidsID: centroidsHash,
		CodebookIDs:          codebookIDs,
		AttributesLogIDs:     attrLogIDs,
		AttributeNames:       a.AttributeNames.Names(),
	}
	manifestHash, err := writeMessageRoot(fs, manifest.Marshal())
	if err != nil {
		return "", err
	}
	return manifestHash, nil
}

func writeMessage(fs store.FileSystem, dir string, data []byte, compressed bool) (string, error) {
	out, err := fs.CreateHashedFileIn(dir, compressed)
	if err != nil {
		return "", err
	}
	if _, err := out.Write(data); err != nil {
		return "", vdberr.WrapIO(err, "writing %s artifact", dir)
	}
	return out.Persist("binpb")
}

func writeMessageRoot(fs store.FileSystem, data []byte) (string, error) {
	out, err := fs.CreateHashedFile(false)
	if err != nil {
		return "", err
	}
	if _, err := out.Write(data); err != nil {
		return "", vdberr.WrapIO(err, "writing manifest")
	}
	return out.Persist("binpb")
}

// readAndVerify reads in fully and checks its hash, the protocol every
// loader below follows: read through EOF, then Verify.
func readAndVerify(in store.HashedFileIn) ([]byte, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, vdberr.WrapIO(err, "reading hashed file")
	}
	if err := in.Verify(); err != nil {
		return nil, err
	}
	return data, nil
}
