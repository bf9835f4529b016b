package models

// Chunk is a contiguous span of source text plus its metadata, produced by the
// chunker during ingestion or rechunking.
type Chunk struct {
	Text      string
	Source    string
	Part      int
	Context   string
	Embedding []float32
}

// StoredChunk is a chunk after the store has assigned it an id.
type StoredChunk struct {
	ID string
	Chunk
}

// RetrievedChunk is a stored chunk returned by a similarity query, together
// with its cosine distance to the query vector (smaller = more similar).
type RetrievedChunk struct {
	StoredChunk
	Distance float32
}

// UploadedFile is a staged upload: the temporary path on disk and the original
// client-supplied filename, which becomes the chunk source.
type UploadedFile struct {
	Path string
	Name string
}

// IngestResult summarizes one upload batch.
type IngestResult struct {
	Chunks  int
	Context string
}

// RetrieveResult is the answer plus the chunks it was grounded on.
type RetrieveResult struct {
	Answer    string
	Retrieved []RetrievedChunk
}

// RechunkResult reports how many chunks were replaced.
type RechunkResult struct {
	OldChunks int
	NewChunks int
}
