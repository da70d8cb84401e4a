// Package sys reports host resources.
package sys

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/shirou/gopsutil/v4/mem"
)

// Memory is a snapshot of host memory, in bytes.
type Memory struct {
	Total     uint64
	Available uint64
	Used      uint64
}

// UsedPercent returns the used share of total memory, from 0 to 100.
func (m Memory) UsedPercent() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Used) / float64(m.Total) * 100
}

func (m Memory) String() string {
	return fmt.Sprintf("%s used of %s (%.1f%%), %s available", FormatBytes(m.Used), FormatBytes(m.Total), m.UsedPercent(), FormatBytes(m.Available))
}

// HostMemory returns the current host memory usage.
func HostMemory() (Memory, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return Memory{}, errors.Wrap(err, "sys: reading virtual memory")
	}
	return Memory{Total: vm.Total, Available: vm.Available, Used: vm.Used}, nil
}

// FormatBytes renders n with a binary unit, e.g. 1.5 GiB.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
