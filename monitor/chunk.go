package monitor

// Chunk splits items into consecutive sub-slices of at most size elements.  Chunks preserve input order,
// never overlap, and concatenated they equal items.  The chunks share items' backing array.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		panic("monitor: chunk size must be positive")
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}
