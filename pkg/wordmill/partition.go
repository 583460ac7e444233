package wordmill

import "hash/fnv"

// PartitionKey computes the partition for a key using the 64-bit FNV-1a hash.
// The hash is fixed for the life of the on-disk intermediate format: mappers
// and reducers must agree on it within a run.
func PartitionKey(key string, numPartitions int) int {
	h := fnv.New64a()
	h.Write([]byte(key))

	return int(h.Sum64() % uint64(numPartitions))
}

// PartitionCounts groups a count table into per-partition buckets.
func PartitionCounts(table map[string]int, numPartitions int) map[int][]KeyCount {
	partitioned := make(map[int][]KeyCount)

	for key, count := range table {
		p := PartitionKey(key, numPartitions)
		partitioned[p] = append(partitioned[p], KeyCount{Key: key, Count: count})
	}

	return partitioned
}
