package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/medsage/medsage-server/internal/config"
	"github.com/medsage/medsage-server/internal/telemetry"
	"github.com/medsage/medsage-server/internal/types"
)

// Pinger is the slice of the database pool the checker needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// diskUsage and virtualMemory are variables so tests can stub the host probes.
var (
	diskUsage     = disk.Usage
	virtualMemory = mem.VirtualMemoryWithContext
)

// Checker runs the readiness probes behind GET /health. Every check is
// reported individually and the overall status is the conjunction of all
// of them.
type Checker struct {
	db      Pinger
	cfg     func() config.HealthConfig
	metrics *telemetry.Metrics
}

func NewChecker(db Pinger, cfg func() config.HealthConfig, metrics *telemetry.Metrics) *Checker {
	return &Checker{db: db, cfg: cfg, metrics: metrics}
}

// Status evaluates all checks. It never returns an error: a failing probe is
// data, encoded in the result.
func (c *Checker) Status(ctx context.Context) types.HealthStatus {
	cfg := c.cfg()
	status := types.HealthStatus{
		Healthy:   true,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]types.HealthCheck, 3),
	}

	record := func(name string, hc types.HealthCheck) {
		status.Checks[name] = hc
		if hc.Status != types.CheckOK {
			status.Healthy = false
			if c.metrics != nil {
				c.metrics.HealthCheckUnhealthy.WithLabelValues(name).Inc()
			}
			slog.Warn("health check failed", "check", name, "message", hc.Message)
		}
	}

	record("database", c.checkDatabase(ctx))
	record("disk", c.checkDisk(ctx, cfg))
	record("memory", c.checkMemory(ctx, cfg))

	return status
}

func (c *Checker) checkDatabase(ctx context.Context) types.HealthCheck {
	if c.db == nil {
		return types.HealthCheck{Status: types.CheckError, Message: "database pool not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.db.Ping(ctx); err != nil {
		return types.HealthCheck{Status: types.CheckError, Message: fmt.Sprintf("ping failed: %v", err)}
	}
	return types.HealthCheck{Status: types.CheckOK, Message: "connected"}
}

func (c *Checker) checkDisk(_ context.Context, cfg config.HealthConfig) types.HealthCheck {
	usage, err := diskUsage(cfg.DiskPath)
	if err != nil {
		return types.HealthCheck{Status: types.CheckError, Message: fmt.Sprintf("disk probe failed: %v", err)}
	}
	if usage.UsedPercent > cfg.DiskThresholdPct {
		return types.HealthCheck{
			Status:  types.CheckError,
			Message: fmt.Sprintf("disk usage %.1f%% exceeds %.1f%%", usage.UsedPercent, cfg.DiskThresholdPct),
		}
	}
	return types.HealthCheck{Status: types.CheckOK, Message: fmt.Sprintf("disk usage %.1f%%", usage.UsedPercent)}
}

// checkMemory degrades to OK when the host does not expose memory stats.
// Some container runtimes restrict /proc and that alone should not take the
// service out of rotation.
func (c *Checker) checkMemory(ctx context.Context, cfg config.HealthConfig) types.HealthCheck {
	vm, err := virtualMemory(ctx)
	if err != nil {
		return types.HealthCheck{Status: types.CheckOK, Message: "memory stats unavailable, check skipped"}
	}
	if vm.UsedPercent > cfg.MemThresholdPct {
		return types.HealthCheck{
			Status:  types.CheckError,
			Message: fmt.Sprintf("memory usage %.1f%% exceeds %.1f%%", vm.UsedPercent, cfg.MemThresholdPct),
		}
	}
	return types.HealthCheck{Status: types.CheckOK, Message: fmt.Sprintf("memory usage %.1f%%", vm.UsedPercent)}
}
