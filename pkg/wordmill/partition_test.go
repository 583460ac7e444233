package wordmill

import "testing"

func TestPartitionKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		key           string
		numPartitions int
	}{
		{"basic", "hello", 4},
		{"single partition", "world", 1},
		{"large partition count", "test", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Same key must always give the same partition
			p1 := PartitionKey(tt.key, tt.numPartitions)
			p2 := PartitionKey(tt.key, tt.numPartitions)

			if p1 != p2 {
				t.Errorf("PartitionKey not consistent: got %d and %d for same key", p1, p2)
			}

			if p1 < 0 || p1 >= tt.numPartitions {
				t.Errorf("PartitionKey(%q, %d) = %d, want value in range [0, %d)",
					tt.key, tt.numPartitions, p1, tt.numPartitions)
			}
		})
	}
}

func TestPartitionKey_Distribution(t *testing.T) {
	t.Parallel()

	numPartitions := 4
	partitions := make(map[int]int)

	keys := []string{"apple", "banana", "cherry", "date", "elderberry", "fig", "grape", "honeydew"}
	for _, key := range keys {
		partitions[PartitionKey(key, numPartitions)]++
	}

	// 8 keys over 4 partitions should land in at least 2 of them
	if len(partitions) < 2 {
		t.Errorf("PartitionKey distributed %d keys into only %d partitions, expected at least 2",
			len(keys), len(partitions))
	}
}

func TestPartitionCounts(t *testing.T) {
	t.Parallel()

	table := map[string]int{
		"apple":  2,
		"banana": 1,
		"cherry": 3,
		"date":   1,
	}
	numPartitions := 3

	result := PartitionCounts(table, numPartitions)

	total := 0
	for partition, kcs := range result {
		if partition < 0 || partition >= numPartitions {
			t.Errorf("Got invalid partition %d, want range [0, %d)", partition, numPartitions)
		}

		for _, kc := range kcs {
			if want := PartitionKey(kc.Key, numPartitions); want != partition {
				t.Errorf("Key %q placed in partition %d, want %d", kc.Key, partition, want)
			}
			if kc.Count != table[kc.Key] {
				t.Errorf("Key %q count = %d, want %d", kc.Key, kc.Count, table[kc.Key])
			}
			total++
		}
	}

	if total != len(table) {
		t.Errorf("Total entries in partitions = %d, want %d", total, len(table))
	}
}
