package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/vectorpool/core"
)

// Key prefixes for different data types
const (
	runPrefix           = "emrun"
	runPoolStatusPrefix = "emruns"
	runIDSeq            = "emrunseq"
	batchPrefix         = "embat"
	batchRunPrefix      = "embatr"
	batchIDSeq          = "embatseq"
	metadataPrefix      = "emmet"
	metadataInputPrefix = "emmeti"
	metadataBatchPrefix = "emmetb"
	embeddingPrefix     = "emrow"
	documentPrefix      = "doc"
)

// makeRunKey generates a key for a run by ID.
func makeRunKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", runPrefix, id))
}

// makeRunPoolStatusKey generates a composite key for the (pool, status) index.
// Format: prefix:pool:status:id
func makeRunPoolStatusKey(pool string, status core.RunStatus, id core.ID) []byte {
	buf := makeRunPoolStatusPrefix(pool, status)
	idBytes := make([]byte, 8)
	// BigEndian so lexicographic sort follows ID order
	binary.BigEndian.PutUint64(idBytes, uint64(id))
	return append(buf, idBytes...)
}

// makeRunPoolStatusPrefix generates the scan prefix for all runs of a pool
// in one status.
func makeRunPoolStatusPrefix(pool string, status core.RunStatus) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:", runPoolStatusPrefix, pool, status))
}

// makeBatchKey generates a key for a batch by ID.
func makeBatchKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", batchPrefix, id))
}

// makeBatchRunKey generates a composite key for the (run, index) index.
// Format: prefix:runID:index, both fixed-width BigEndian so batches scan
// in index order.
func makeBatchRunKey(runId core.ID, index int) []byte {
	buf := makeBatchRunPrefix(runId)
	idxBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(idxBytes, uint64(index))
	return append(buf, idxBytes...)
}

// makeBatchRunPrefix generates the scan prefix for all batches of a run.
func makeBatchRunPrefix(runId core.ID) []byte {
	prefix := []byte(batchRunPrefix + ":")
	runBytes := make([]byte, 9)
	binary.BigEndian.PutUint64(runBytes, uint64(runId))
	runBytes[8] = ':'
	return append(prefix, runBytes...)
}

// makeMetadataKey generates a key for an input metadata row by ID.
func makeMetadataKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", metadataPrefix, id))
}

// makeMetadataInputKey generates a composite key for the (run, inputID) index.
// Input IDs have the form "collection:documentID:chunkIndex", so a prefix of
// "collection:documentID:" also serves per-document scans within a run.
func makeMetadataInputKey(runId core.ID, inputId string) []byte {
	return append(makeMetadataRunPrefix(runId), []byte(inputId)...)
}

// makeMetadataRunPrefix generates the scan prefix for all metadata of a run.
func makeMetadataRunPrefix(runId core.ID) []byte {
	prefix := []byte(metadataInputPrefix + ":")
	runBytes := make([]byte, 9)
	binary.BigEndian.PutUint64(runBytes, uint64(runId))
	runBytes[8] = ':'
	return append(prefix, runBytes...)
}

// makeMetadataDocumentPrefix generates the scan prefix for one document's
// metadata rows within a run.
func makeMetadataDocumentPrefix(runId core.ID, collection, documentId string) []byte {
	return append(makeMetadataRunPrefix(runId), []byte(collection+":"+documentId+":")...)
}

// makeMetadataBatchKey generates a composite key for the batch index.
// Format: prefix:batchID:metadataID
func makeMetadataBatchKey(batchId, metaId core.ID) []byte {
	buf := makeMetadataBatchPrefix(batchId)
	idBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(idBytes, uint64(metaId))
	return append(buf, idBytes...)
}

// makeMetadataBatchPrefix generates the scan prefix for a batch's metadata.
func makeMetadataBatchPrefix(batchId core.ID) []byte {
	prefix := []byte(metadataBatchPrefix + ":")
	batchBytes := make([]byte, 9)
	binary.BigEndian.PutUint64(batchBytes, uint64(batchId))
	batchBytes[8] = ':'
	return append(prefix, batchBytes...)
}

// makeEmbeddingKey generates the natural key for an embedding row.
// Format: prefix:pool:collection:documentID:chunkIndex, chunk index
// fixed-width BigEndian so a document's rows scan in chunk order.
func makeEmbeddingKey(pool, collection, documentId string, chunkIndex int) []byte {
	buf := makeEmbeddingDocumentPrefix(pool, collection, documentId)
	idxBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(idxBytes, uint64(chunkIndex))
	return append(buf, idxBytes...)
}

// makeEmbeddingDocumentPrefix generates the scan prefix for one document's
// embedding rows in a pool.
func makeEmbeddingDocumentPrefix(pool, collection, documentId string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:%s:", embeddingPrefix, pool, collection, documentId))
}

// makeEmbeddingPoolPrefix generates the scan prefix for all rows in a pool.
func makeEmbeddingPoolPrefix(pool string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", embeddingPrefix, pool))
}

// makeDocumentKey generates a key for a source document.
func makeDocumentKey(collection, id string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", documentPrefix, collection, id))
}

// makeDocumentCollectionPrefix generates the scan prefix for a collection.
func makeDocumentCollectionPrefix(collection string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", documentPrefix, collection))
}
