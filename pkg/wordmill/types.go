package wordmill

// KeyCount is one record of the word-count pipeline: a normalized key and how
// many times it has been observed so far.
type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// JobConfig describes one controller run. It is immutable once the run starts.
type JobConfig struct {
	InputDir  string
	OutputDir string
	TempDir   string

	Mappers  int // M
	Reducers int // R

	MapperPool  PoolBounds
	ReducerPool PoolBounds

	PartitionPrefix string
	PartitionSuffix string
	SuccessFileName string
	FinalOutputName string

	// CleanupTemp removes TempDir after the success marker is written.
	CleanupTemp bool
}

// PoolBounds is the min/max worker count for a worker pool. Zero values are
// resolved by the pool to the host's available parallelism.
type PoolBounds struct {
	Min int
	Max int
}

// Defaults for the configurable file names.
const (
	DefaultPartitionPrefix = "result_partition"
	DefaultPartitionSuffix = ".txt"
	DefaultSuccessFileName = "_SUCCESS"
	DefaultFinalOutputName = "final_result.txt"

	// InputExtension is the only file extension considered for input.
	InputExtension = ".txt"
)

// NewJobConfig returns a JobConfig with the default file-naming conventions
// applied. M and R are validated by the controller, not here.
func NewJobConfig(inputDir, outputDir, tempDir string, mappers, reducers int) JobConfig {
	return JobConfig{
		InputDir:        inputDir,
		OutputDir:       outputDir,
		TempDir:         tempDir,
		Mappers:         mappers,
		Reducers:        reducers,
		PartitionPrefix: DefaultPartitionPrefix,
		PartitionSuffix: DefaultPartitionSuffix,
		SuccessFileName: DefaultSuccessFileName,
		FinalOutputName: DefaultFinalOutputName,
	}
}
