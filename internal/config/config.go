// Package config loads the optional run configuration file. CLI arguments
// take precedence over file values, which take precedence over defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"pkg.jsn.cam/wordmill/pkg/wordmill"
)

// File mirrors the JSON configuration document. Absent fields leave the
// corresponding JobConfig values untouched.
type File struct {
	MapperPool  *PoolBounds `json:"mapper_pool,omitempty"`
	ReducerPool *PoolBounds `json:"reducer_pool,omitempty"`

	PartitionPrefix string `json:"partition_prefix,omitempty"`
	PartitionSuffix string `json:"partition_suffix,omitempty"`
	SuccessFileName string `json:"success_file_name,omitempty"`
	FinalOutputName string `json:"final_output_name,omitempty"`
}

// PoolBounds is the JSON shape of a pool's min/max.
type PoolBounds struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Load reads and decodes a configuration file.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := f.validate(); err != nil {
		return File{}, fmt.Errorf("config %s: %w", path, err)
	}

	return f, nil
}

func (f File) validate() error {
	for name, p := range map[string]*PoolBounds{"mapper_pool": f.MapperPool, "reducer_pool": f.ReducerPool} {
		if p == nil {
			continue
		}
		if p.Min < 0 || p.Max < 0 {
			return fmt.Errorf("%s: negative pool bounds", name)
		}
		if p.Max != 0 && p.Min != 0 && p.Max < p.Min {
			return fmt.Errorf("%s: max %d below min %d", name, p.Max, p.Min)
		}
	}

	return nil
}

// Apply overlays the file's values onto a job configuration.
func (f File) Apply(cfg *wordmill.JobConfig) {
	if f.MapperPool != nil {
		cfg.MapperPool = wordmill.PoolBounds{Min: f.MapperPool.Min, Max: f.MapperPool.Max}
	}
	if f.ReducerPool != nil {
		cfg.ReducerPool = wordmill.PoolBounds{Min: f.ReducerPool.Min, Max: f.ReducerPool.Max}
	}
	if f.PartitionPrefix != "" {
		cfg.PartitionPrefix = f.PartitionPrefix
	}
	if f.PartitionSuffix != "" {
		cfg.PartitionSuffix = f.PartitionSuffix
	}
	if f.SuccessFileName != "" {
		cfg.SuccessFileName = f.SuccessFileName
	}
	if f.FinalOutputName != "" {
		cfg.FinalOutputName = f.FinalOutputName
	}
}
