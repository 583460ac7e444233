package config

import (
	"os"
	"path/filepath"
	"testing"

	"pkg.jsn.cam/wordmill/pkg/wordmill"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "wordmill.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestLoad_FullDocument(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{
		"mapper_pool": {"min": 2, "max": 8},
		"reducer_pool": {"min": 1, "max": 4},
		"partition_prefix": "part_",
		"partition_suffix": ".out",
		"success_file_name": "DONE",
		"final_output_name": "totals.txt"
	}`)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	cfg := wordmill.NewJobConfig("/in", "/out", "/tmp", 2, 2)
	f.Apply(&cfg)

	if cfg.MapperPool != (wordmill.PoolBounds{Min: 2, Max: 8}) {
		t.Errorf("MapperPool = %+v", cfg.MapperPool)
	}
	if cfg.ReducerPool != (wordmill.PoolBounds{Min: 1, Max: 4}) {
		t.Errorf("ReducerPool = %+v", cfg.ReducerPool)
	}
	if cfg.PartitionPrefix != "part_" || cfg.PartitionSuffix != ".out" {
		t.Errorf("partition naming = %q %q", cfg.PartitionPrefix, cfg.PartitionSuffix)
	}
	if cfg.SuccessFileName != "DONE" || cfg.FinalOutputName != "totals.txt" {
		t.Errorf("output naming = %q %q", cfg.SuccessFileName, cfg.FinalOutputName)
	}
}

func TestLoad_PartialDocumentKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{"mapper_pool": {"min": 3, "max": 3}}`)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	cfg := wordmill.NewJobConfig("/in", "/out", "/tmp", 1, 1)
	f.Apply(&cfg)

	if cfg.MapperPool != (wordmill.PoolBounds{Min: 3, Max: 3}) {
		t.Errorf("MapperPool = %+v", cfg.MapperPool)
	}
	if cfg.SuccessFileName != wordmill.DefaultSuccessFileName {
		t.Errorf("SuccessFileName = %q, want default", cfg.SuccessFileName)
	}
	if cfg.FinalOutputName != wordmill.DefaultFinalOutputName {
		t.Errorf("FinalOutputName = %q, want default", cfg.FinalOutputName)
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"bad json", `{"mapper_pool":`},
		{"negative bounds", `{"mapper_pool": {"min": -1, "max": 2}}`},
		{"max below min", `{"reducer_pool": {"min": 4, "max": 2}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Errorf("Load(%q) succeeded, want error", tt.content)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("Load succeeded for missing file, want error")
	}
}
