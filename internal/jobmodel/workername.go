package jobmodel

import (
	"encoding/hex"
	"hash/fnv"
)

// WorkerName derives a deterministic, DNS-label-safe edge-worker name from a
// job id. It is a pure function of id: callers never need to persist a
// separate mapping, only the job row's own id.
func WorkerName(jobID string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(jobID))
	sum := h.Sum(nil)
	return "nimbus-" + hex.EncodeToString(sum)[:12]
}
