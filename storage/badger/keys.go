package badger

// Key prefixes for different data types
const (
	chunkRecordPrefix = "chunk:"
)

// makeChunkKey generates the primary key for a chunk record.
// Format: prefix + chunk ID
func makeChunkKey(id string) []byte {
	buf := make([]byte, 0, len(chunkRecordPrefix)+len(id))
	buf = append(buf, chunkRecordPrefix...)
	return append(buf, id...)
}
