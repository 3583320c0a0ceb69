package instances

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// HostMonitor samples utilization of the machine the benchmark runs on.
// CPU utilization is computed over the interval between two samples, so the
// first sample after creation covers the time since boot.
type HostMonitor struct {
	procRoot     string
	instanceType string

	mutex   sync.Mutex
	lastCPU cpuTimes
}

// SystemStats holds system-level statistics
type SystemStats struct {
	CPUUtilization float64
	MemoryUsage    float64
	Timestamp      time.Time
}

type cpuTimes struct {
	busy, total int64
}

// NewHostMonitor creates a monitor reading from /proc
func NewHostMonitor() *HostMonitor {
	return NewHostMonitorAt("/proc")
}

// NewHostMonitorAt creates a monitor reading procfs files under procRoot
func NewHostMonitorAt(procRoot string) *HostMonitor {
	return &HostMonitor{
		procRoot:     procRoot,
		instanceType: getInstanceType(),
	}
}

// GetSystemStats collects current system statistics
func (hm *HostMonitor) GetSystemStats() (*SystemStats, error) {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	stats := &SystemStats{
		Timestamp: time.Now(),
	}

	cpu, err := hm.readCPUTimes()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get CPU utilization")
	}
	busy, total := cpu.busy-hm.lastCPU.busy, cpu.total-hm.lastCPU.total
	if total > 0 {
		stats.CPUUtilization = float64(busy) / float64(total) * 100
	}
	hm.lastCPU = cpu

	memUsage, err := hm.getMemoryUsage()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get memory usage")
	}
	stats.MemoryUsage = memUsage

	return stats, nil
}

// readCPUTimes reads the aggregate cpu line of /proc/stat
func (hm *HostMonitor) readCPUTimes() (cpuTimes, error) {
	file, err := os.Open(filepath.Join(hm.procRoot, "stat"))
	if err != nil {
		return cpuTimes{}, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}

		var t cpuTimes
		for i, field := range fields[1:] {
			v, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return cpuTimes{}, errors.Wrapf(err, "bad cpu field %q", field)
			}
			t.total += v
			// idle and iowait are the 4th and 5th columns
			if i != 3 && i != 4 {
				t.busy += v
			}
		}
		return t, nil
	}

	if err := scanner.Err(); err != nil {
		return cpuTimes{}, err
	}
	return cpuTimes{}, errors.New("no cpu line in stat")
}

// getMemoryUsage reads memory usage from /proc/meminfo
func (hm *HostMonitor) getMemoryUsage() (float64, error) {
	file, err := os.Open(filepath.Join(hm.procRoot, "meminfo"))
	if err != nil {
		return 0, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var total, available int64

	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total, _ = strconv.ParseInt(fields[1], 10, 64)
		case "MemAvailable:":
			available, _ = strconv.ParseInt(fields[1], 10, 64)
		}
	}

	if total > 0 {
		used := total - available
		return float64(used) / float64(total) * 100, nil
	}

	return 0, nil
}

// getInstanceType returns the instance type the host reports, or "unknown"
func getInstanceType() string {
	if instanceType := os.Getenv("EC2_INSTANCE_TYPE"); instanceType != "" {
		return instanceType
	}

	if data, err := os.ReadFile("/sys/hypervisor/uuid"); err == nil {
		if strings.HasPrefix(string(data), "ec2") {
			return "ec2-instance"
		}
	}

	return "unknown"
}

// GetInstanceType returns the detected instance type
func (hm *HostMonitor) GetInstanceType() string {
	return hm.instanceType
}
