package wordmill

import "testing"

func TestIntermediateFileName(t *testing.T) {
	t.Parallel()

	if got := IntermediateFileName(2, 5); got != "mapper2_partition5.tmp" {
		t.Errorf("IntermediateFileName(2, 5) = %q", got)
	}
}

func TestIsIntermediateFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		fileName  string
		partition int
		want      bool
	}{
		{"own partition", "mapper0_partition1.tmp", 1, true},
		{"other mapper same partition", "mapper7_partition1.tmp", 1, true},
		{"other partition", "mapper0_partition2.tmp", 1, false},
		{"partition index is a prefix", "mapper0_partition12.tmp", 1, false},
		{"wrong prefix", "reducer0_partition1.tmp", 1, false},
		{"wrong extension", "mapper0_partition1.txt", 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsIntermediateFor(tt.fileName, tt.partition); got != tt.want {
				t.Errorf("IsIntermediateFor(%q, %d) = %v, want %v",
					tt.fileName, tt.partition, got, tt.want)
			}
		})
	}
}

func TestResultFileName(t *testing.T) {
	t.Parallel()

	cfg := NewJobConfig("/in", "/out", "/tmp", 1, 2)
	if got := cfg.ResultFileName(1); got != "result_partition1.txt" {
		t.Errorf("ResultFileName(1) = %q", got)
	}

	cfg.PartitionPrefix = "part_"
	cfg.PartitionSuffix = ".out"
	if got := cfg.ResultFileName(0); got != "part_0.out" {
		t.Errorf("custom ResultFileName(0) = %q", got)
	}
}
