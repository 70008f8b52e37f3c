package chains

import "github.com/scottbrough/bugbounty-framework/pkg/store"

// Batch is a bounded group of hosts' findings submitted together for
// analysis. Batches are ephemeral; they exist only for one pipeline run.
type Batch struct {
	Index int
	Hosts []store.HostFindings
}

// Size returns the number of hosts in the batch.
func (b Batch) Size() int {
	return len(b.Hosts)
}

// HasHost reports whether the batch contains the given host.
func (b Batch) HasHost(host string) bool {
	for _, h := range b.Hosts {
		if h.Host == host {
			return true
		}
	}
	return false
}

// PlanBatches filters out hosts that cannot form a chain (fewer than
// minChainSize findings) and partitions the remainder into batches of at
// most batchSize hosts, preserving input order. An empty result means no
// chains are possible for this target; it is not an error.
func PlanBatches(grouped []store.HostFindings, minChainSize, batchSize int) []Batch {
	if minChainSize < 2 {
		minChainSize = 2
	}
	if batchSize < 1 {
		batchSize = 1
	}

	eligible := make([]store.HostFindings, 0, len(grouped))
	for _, hf := range grouped {
		if len(hf.Findings) >= minChainSize {
			eligible = append(eligible, hf)
		}
	}

	var batches []Batch
	for start := 0; start < len(eligible); start += batchSize {
		end := start + batchSize
		if end > len(eligible) {
			end = len(eligible)
		}
		batches = append(batches, Batch{
			Index: len(batches),
			Hosts: eligible[start:end],
		})
	}
	return batches
}
