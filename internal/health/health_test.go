package health

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/medsage/medsage-server/internal/config"
	"github.com/medsage/medsage-server/internal/types"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(context.Context) error { return m.err }

func stubProbes(t *testing.T, diskPct, memPct float64, diskErr, memErr error) {
	t.Helper()
	origDisk, origMem := diskUsage, virtualMemory
	diskUsage = func(string) (*disk.UsageStat, error) {
		if diskErr != nil {
			return nil, diskErr
		}
		return &disk.UsageStat{UsedPercent: diskPct}, nil
	}
	virtualMemory = func(context.Context) (*mem.VirtualMemoryStat, error) {
		if memErr != nil {
			return nil, memErr
		}
		return &mem.VirtualMemoryStat{UsedPercent: memPct}, nil
	}
	t.Cleanup(func() {
		diskUsage = origDisk
		virtualMemory = origMem
	})
}

func healthConfig() func() config.HealthConfig {
	return func() config.HealthConfig {
		return config.HealthConfig{DiskPath: "/", DiskThresholdPct: 80, MemThresholdPct: 80}
	}
}

func TestChecker_AllHealthy(t *testing.T) {
	stubProbes(t, 42, 55, nil, nil)
	c := NewChecker(&mockPinger{}, healthConfig(), nil)

	status := c.Status(context.Background())
	if !status.Healthy {
		t.Fatalf("expected healthy, got %+v", status)
	}
	for _, name := range []string{"database", "disk", "memory"} {
		hc, ok := status.Checks[name]
		if !ok {
			t.Fatalf("check %q missing from report", name)
		}
		if hc.Status != types.CheckOK {
			t.Errorf("check %q = %+v", name, hc)
		}
	}
}

func TestChecker_DatabaseDown(t *testing.T) {
	stubProbes(t, 42, 55, nil, nil)
	c := NewChecker(&mockPinger{err: errors.New("connection refused")}, healthConfig(), nil)

	status := c.Status(context.Background())
	if status.Healthy {
		t.Fatal("database failure must mark the service unhealthy")
	}
	if status.Checks["database"].Status != types.CheckError {
		t.Errorf("database check = %+v", status.Checks["database"])
	}
	// Remaining checks are still reported.
	if status.Checks["disk"].Status != types.CheckOK {
		t.Errorf("disk check = %+v", status.Checks["disk"])
	}
}

func TestChecker_DiskOverThreshold(t *testing.T) {
	stubProbes(t, 95.5, 55, nil, nil)
	c := NewChecker(&mockPinger{}, healthConfig(), nil)

	status := c.Status(context.Background())
	if status.Healthy {
		t.Fatal("disk over threshold must mark the service unhealthy")
	}
	if !strings.Contains(status.Checks["disk"].Message, "95.5%") {
		t.Errorf("disk message = %q", status.Checks["disk"].Message)
	}
}

func TestChecker_MemoryOverThreshold(t *testing.T) {
	stubProbes(t, 42, 91, nil, nil)
	c := NewChecker(&mockPinger{}, healthConfig(), nil)

	if c.Status(context.Background()).Healthy {
		t.Fatal("memory over threshold must mark the service unhealthy")
	}
}

func TestChecker_MemoryProbeUnavailableIsNotFatal(t *testing.T) {
	stubProbes(t, 42, 0, nil, errors.New("procfs restricted"))
	c := NewChecker(&mockPinger{}, healthConfig(), nil)

	status := c.Status(context.Background())
	if !status.Healthy {
		t.Fatal("unavailable memory stats must not fail the probe")
	}
	if status.Checks["memory"].Status != types.CheckOK {
		t.Errorf("memory check = %+v", status.Checks["memory"])
	}
}

func TestChecker_NilPool(t *testing.T) {
	stubProbes(t, 42, 55, nil, nil)
	c := NewChecker(nil, healthConfig(), nil)

	if c.Status(context.Background()).Healthy {
		t.Fatal("missing database pool must mark the service unhealthy")
	}
}
