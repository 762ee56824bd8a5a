package graphdb

// BatchConfig bounds the rows sent in one UNWIND. Edges carry fewer
// properties than nodes, so they batch larger.
type BatchConfig struct {
	NodeBatchSize int
	EdgeBatchSize int
}

func DefaultBatchConfig() BatchConfig {
	return BatchConfig{NodeBatchSize: 1000, EdgeBatchSize: 5000}
}

// BatchConfigFor derives sizes from the configured node batch size.
func BatchConfigFor(nodeBatch int) BatchConfig {
	if nodeBatch <= 0 {
		return DefaultBatchConfig()
	}
	return BatchConfig{NodeBatchSize: nodeBatch, EdgeBatchSize: nodeBatch * 5}
}

// chunks splits n rows into [start, end) windows of at most size rows.
func chunks(n, size int) [][2]int {
	if size <= 0 {
		size = n
	}
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
