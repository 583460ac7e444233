package wordmill

import (
	"fmt"
	"strconv"
	"strings"
)

// IntermediateFileName returns the name of the partition file mapper m writes
// for reducer r: "mapper{m}_partition{r}.tmp".
func IntermediateFileName(mapperID, partition int) string {
	return fmt.Sprintf("mapper%d_partition%d.tmp", mapperID, partition)
}

// IntermediateSuffix returns the suffix shared by every mapper's file for
// partition r. Reducers match on this plus the "mapper" prefix.
func IntermediateSuffix(partition int) string {
	return fmt.Sprintf("_partition%d.tmp", partition)
}

// IsIntermediateFor reports whether name is an intermediate file belonging to
// partition r, regardless of which mapper wrote it.
func IsIntermediateFor(name string, partition int) bool {
	return strings.HasPrefix(name, "mapper") && strings.HasSuffix(name, IntermediateSuffix(partition))
}

// ResultFileName returns the reducer output name for partition r, by default
// "result_partition{r}.txt".
func (c JobConfig) ResultFileName(partition int) string {
	return c.PartitionPrefix + strconv.Itoa(partition) + c.PartitionSuffix
}
