package common

import (
	"log"
	"os"
	"strconv"
)

// ComputeMaxInFlightAsyncReads returns the global cap on concurrently
// in-flight async disk read requests (see jobs.AsyncDiskLoadJob). If the
// environment variable ENGINE_MAX_INFLIGHT_READS is set, it overrides the
// CPU-derived default.
func ComputeMaxInFlightAsyncReads(numOfCPUs int) int {
	override := os.Getenv("ENGINE_MAX_INFLIGHT_READS")
	if override != "" {
		val, err := strconv.ParseInt(override, 10, 64)
		if err != nil {
			log.Fatalf("error parsing the env ENGINE_MAX_INFLIGHT_READS %q failed with error %v",
				override, err)
		}
		return int(val)
	}

	// fix the value for smaller machines
	if numOfCPUs <= 4 {
		return 32
	}

	// for machines that are extremely powerful, fix to 300 to avoid running out of file descriptors
	if 16*numOfCPUs > 300 {
		return 300
	}

	// for moderately powerful machines, compute a reasonable number
	return 16 * numOfCPUs
}
