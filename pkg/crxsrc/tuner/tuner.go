// Package tuner sizes the extraction and module-write worker pools from the
// host's CPU and memory.
package tuner

// SystemResources contains detected system resources.
type SystemResources struct {
	// CPUCores is the number of logical CPU cores available.
	CPUCores int

	// TotalRAM is the total physical RAM in bytes.
	TotalRAM int64

	// AvailableRAM is the free RAM in bytes. It may be an estimate.
	AvailableRAM int64
}

// Pool limits.
const (
	maxWorkers = 64

	minExtractWorkers = 2

	minWriteWorkers = 4

	// bytesPerExtractWorker estimates the peak memory of one entry task:
	// the inflated entry, its normalized copy and parser state.
	bytesPerExtractWorker = 64 << 20

	// memoryFraction is the share of available RAM extraction may claim.
	memoryFraction = 0.25
)

// Pools holds worker counts for each stage.
type Pools struct {
	// ExtractWorkers bounds concurrent archive entry tasks. Inflating and
	// normalizing are CPU bound so this tracks the core count.
	ExtractWorkers int

	// WriteWorkers bounds concurrent module file writes in split.
	WriteWorkers int
}

// Calculate returns pool sizes for the given resources.
//
//   - ExtractWorkers: NumCPU, at least 2, then capped so the estimated
//     working set fits in a quarter of available RAM
//   - WriteWorkers: NumCPU * 4, at least 4, since writes mostly wait on disk
//   - Both are capped at 64
func Calculate(resources SystemResources) Pools {
	extract := max(resources.CPUCores, minExtractWorkers)
	if resources.AvailableRAM > 0 {
		budget := int(float64(resources.AvailableRAM) * memoryFraction / bytesPerExtractWorker)
		extract = min(extract, max(budget, 1))
	}
	extract = min(extract, maxWorkers)

	write := max(resources.CPUCores*4, minWriteWorkers)
	write = min(write, maxWorkers)

	return Pools{
		ExtractWorkers: extract,
		WriteWorkers:   write,
	}
}

// CalculateWithOverride applies a user worker count to both pools when it is
// positive, still respecting the cap of 64.
func CalculateWithOverride(resources SystemResources, override int) Pools {
	pools := Calculate(resources)
	if override > 0 {
		n := min(override, maxWorkers)
		pools.ExtractWorkers = n
		pools.WriteWorkers = n
	}
	return pools
}

// ForHost detects resources and calculates pools, falling back to the
// undetected estimate when detection fails.
func ForHost(override int) Pools {
	resources, err := Detect()
	if err != nil {
		resources.AvailableRAM = 0
	}
	return CalculateWithOverride(resources, override)
}
