package cache

import "context"

// DatasetStats aggregates the entries of one dataset.
type DatasetStats struct {
	Count int `json:"count"`
	Bytes int `json:"bytes"`
}

// Stats describes the storage footprint of the cache namespace.
type Stats struct {
	TotalItems int                     `json:"total_items"`
	TotalBytes int                     `json:"total_bytes"`
	ByDataset  map[string]DatasetStats `json:"by_dataset"`
}

// Stats walks the namespace and sizes every stored envelope.
// The second result is false when the store could not be listed.
func (c *Cache) Stats(ctx context.Context) (Stats, bool) {
	stats := Stats{ByDataset: make(map[string]DatasetStats)}

	keys, err := c.store.Keys(ctx, Namespace)
	if err != nil {
		c.logger.Warnf("cannot list keys for stats: %v", err)
		return stats, false
	}

	for _, key := range keys {
		raw, err := c.store.Get(ctx, key)
		if err != nil {
			continue
		}

		stats.TotalItems++
		stats.TotalBytes += len(raw)

		name := classify(key)
		ds := stats.ByDataset[name]
		ds.Count++
		ds.Bytes += len(raw)
		stats.ByDataset[name] = ds
	}
	return stats, true
}
