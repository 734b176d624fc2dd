package controlplane

import (
	"context"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// SystemProbe reads machine and daemon resource usage.
type SystemProbe interface {
	// Memory returns total and used physical memory in bytes.
	Memory(ctx context.Context) (total, used uint64, err error)
	// CPUPercent returns machine-wide CPU usage since the previous call.
	CPUPercent(ctx context.Context) (float64, error)
	// DiskPercent returns usage of the filesystem holding the daemon's data.
	DiskPercent(ctx context.Context) (float64, error)
	// Process returns the daemon's resident memory and CPU usage.
	Process(ctx context.Context) (rss uint64, cpuPercent float64, err error)
}

// HostProbe is the SystemProbe backed by gopsutil.
type HostProbe struct {
	diskPath string
	proc     *process.Process
}

// NewHostProbe creates a probe whose disk usage is measured at diskPath.
// An empty diskPath measures the root filesystem.
func NewHostProbe(diskPath string) *HostProbe {
	if diskPath == "" {
		diskPath = "/"
		if runtime.GOOS == "windows" {
			diskPath = `C:\`
		}
	}
	p, _ := process.NewProcess(int32(os.Getpid()))
	return &HostProbe{diskPath: diskPath, proc: p}
}

func (h *HostProbe) Memory(ctx context.Context) (uint64, uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}
	return vm.Total, vm.Used, nil
}

func (h *HostProbe) CPUPercent(ctx context.Context) (float64, error) {
	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(pct) == 0 {
		return 0, nil
	}
	return pct[0], nil
}

func (h *HostProbe) DiskPercent(ctx context.Context) (float64, error) {
	usage, err := disk.UsageWithContext(ctx, h.diskPath)
	if err != nil {
		return 0, err
	}
	return usage.UsedPercent, nil
}

func (h *HostProbe) Process(ctx context.Context) (uint64, float64, error) {
	if h.proc == nil {
		return 0, 0, nil
	}
	mi, err := h.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}
	pct, err := h.proc.CPUPercentWithContext(ctx)
	if err != nil {
		return mi.RSS, 0, nil
	}
	return mi.RSS, pct, nil
}
