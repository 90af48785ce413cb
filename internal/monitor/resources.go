// Package monitor samples process and host resources between pipeline stages.
// Extraction holds the whole dataset in memory, so the orchestrator logs a
// sample after each stage and warns when the host runs low.
package monitor

import (
	"context"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/geolife/importer/internal/logger"
)

const (
	bytesPerMB = 1024 * 1024

	// DefaultMemoryWarningPercent is the host memory usage above which a warning is logged.
	DefaultMemoryWarningPercent = 90.0
	// DefaultDiskWarningPercent is the disk usage above which a warning is logged.
	DefaultDiskWarningPercent = 95.0
)

// Sample is one resource measurement.
type Sample struct {
	ProcessRSS        uint64
	HostUsedPercent   float64
	HostAvailable     uint64
	DiskPath          string
	DiskUsedPercent   float64
	DiskFree          uint64
	diskSampled       bool
}

// ResourceMonitor takes samples and logs them.
type ResourceMonitor struct {
	log            logger.Logger
	pid            int32
	diskPath       string
	memoryWarnPct  float64
	diskWarnPct    float64
	sampleProcess  func(ctx context.Context, pid int32) (uint64, error)
	sampleHostMem  func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	sampleDiskPath func(ctx context.Context, path string) (*disk.UsageStat, error)
}

// Config configures a ResourceMonitor.
type Config struct {
	// DiskPath is checked for free space; empty skips disk sampling.
	DiskPath             string
	MemoryWarningPercent float64
	DiskWarningPercent   float64
	Logger               logger.Logger
}

// New creates a ResourceMonitor for the current process.
func New(cfg Config) *ResourceMonitor {
	if cfg.MemoryWarningPercent <= 0 {
		cfg.MemoryWarningPercent = DefaultMemoryWarningPercent
	}
	if cfg.DiskWarningPercent <= 0 {
		cfg.DiskWarningPercent = DefaultDiskWarningPercent
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewConsoleLogger("monitor", logger.LogLevelInfo)
	} else {
		log = log.Module("monitor")
	}
	return &ResourceMonitor{
		log:            log,
		pid:            int32(os.Getpid()), //nolint:gosec // pids fit in int32
		diskPath:       cfg.DiskPath,
		memoryWarnPct:  cfg.MemoryWarningPercent,
		diskWarnPct:    cfg.DiskWarningPercent,
		sampleProcess:  processRSS,
		sampleHostMem:  mem.VirtualMemoryWithContext,
		sampleDiskPath: disk.UsageWithContext,
	}
}

func processRSS(ctx context.Context, pid int32) (uint64, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return 0, err
	}
	info, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return info.RSS, nil
}

// Sample measures process RSS, host memory and, if configured, disk usage.
// Individual probe failures are logged and leave the field zero.
func (m *ResourceMonitor) Sample(ctx context.Context) Sample {
	var s Sample

	rss, err := m.sampleProcess(ctx, m.pid)
	if err != nil {
		m.log.Debug("failed to sample process memory", logger.Error(err))
	}
	s.ProcessRSS = rss

	if vm, err := m.sampleHostMem(ctx); err != nil {
		m.log.Debug("failed to sample host memory", logger.Error(err))
	} else {
		s.HostUsedPercent = vm.UsedPercent
		s.HostAvailable = vm.Available
	}

	if m.diskPath != "" {
		if usage, err := m.sampleDiskPath(ctx, m.diskPath); err != nil {
			m.log.Debug("failed to sample disk usage",
				logger.String("path", m.diskPath),
				logger.Error(err))
		} else {
			s.DiskPath = m.diskPath
			s.DiskUsedPercent = usage.UsedPercent
			s.DiskFree = usage.Free
			s.diskSampled = true
		}
	}
	return s
}

// LogStage samples resources and logs them against a finished stage. It
// returns the sample for callers that want to report it further.
func (m *ResourceMonitor) LogStage(ctx context.Context, stage string) Sample {
	s := m.Sample(ctx)
	log := m.log.WithContext(ctx)

	fields := []logger.Field{
		logger.String("stage", stage),
		logger.Uint64("process_rss_mb", s.ProcessRSS/bytesPerMB),
		logger.String("host_memory_used", fmt.Sprintf("%.1f%%", s.HostUsedPercent)),
		logger.Uint64("host_available_mb", s.HostAvailable/bytesPerMB),
	}
	if s.diskSampled {
		fields = append(fields,
			logger.String("disk_path", s.DiskPath),
			logger.Uint64("disk_free_mb", s.DiskFree/bytesPerMB))
	}
	log.Debug("resource usage", fields...)

	if s.HostUsedPercent >= m.memoryWarnPct {
		log.Warn("host memory is nearly exhausted",
			logger.String("stage", stage),
			logger.Float64("used_percent", s.HostUsedPercent),
			logger.Float64("threshold_percent", m.memoryWarnPct))
	}
	if s.diskSampled && s.DiskUsedPercent >= m.diskWarnPct {
		log.Warn("disk is nearly full",
			logger.String("stage", stage),
			logger.String("path", s.DiskPath),
			logger.Float64("used_percent", s.DiskUsedPercent),
			logger.Float64("threshold_percent", m.diskWarnPct))
	}
	return s
}
