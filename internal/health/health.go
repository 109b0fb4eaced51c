// Package health runs operational diagnostics: capture privileges,
// interface availability, port and filesystem access, and host resources.
package health

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"gosniff/internal/capture"
)

// Check severities. A fail marks the whole report unhealthy; warns do not.
const (
	StatusOK   = "ok"
	StatusWarn = "warn"
	StatusFail = "fail"
)

// Check is one diagnostic result.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// Report aggregates all diagnostics.
type Report struct {
	Healthy     bool      `json:"healthy"`
	Checks      []Check   `json:"checks"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Options selects what the diagnostics probe.
type Options struct {
	// WebPort is probed for availability; 0 skips the probe.
	WebPort int
	// ExportDir is probed for writability.
	ExportDir string
}

// Run executes every diagnostic and never fails; problems show up as warn or
// fail checks in the report.
func Run(opts Options) Report {
	report := Report{GeneratedAt: time.Now()}

	report.add(checkPrivileges())
	report.add(checkInterfaces())
	if opts.WebPort > 0 {
		report.add(checkPort(opts.WebPort))
	}
	if opts.ExportDir != "" {
		report.add(checkExportDir(opts.ExportDir))
	}
	report.add(checkHost())
	report.add(checkMemory())
	report.add(checkCPU())

	report.Healthy = true
	for _, c := range report.Checks {
		if c.Status == StatusFail {
			report.Healthy = false
			break
		}
	}
	return report
}

func (r *Report) add(c Check) {
	r.Checks = append(r.Checks, c)
}

func checkPrivileges() Check {
	if runtime.GOOS == "windows" {
		return Check{Name: "privileges", Status: StatusWarn, Detail: "cannot determine capture privileges on this platform"}
	}
	if os.Geteuid() == 0 {
		return Check{Name: "privileges", Status: StatusOK, Detail: "running with root privileges"}
	}
	return Check{Name: "privileges", Status: StatusWarn, Detail: "not running as root; live capture may fail to open"}
}

func checkInterfaces() Check {
	names, err := capture.ListInterfaces()
	if err != nil {
		return Check{Name: "interfaces", Status: StatusFail, Detail: err.Error()}
	}
	if len(names) == 0 {
		return Check{Name: "interfaces", Status: StatusWarn, Detail: "no network interfaces found"}
	}
	shown := names
	if len(shown) > 3 {
		shown = shown[:3]
	}
	return Check{
		Name:   "interfaces",
		Status: StatusOK,
		Detail: fmt.Sprintf("found %d interfaces (%s)", len(names), strings.Join(shown, ", ")),
	}
}

func checkPort(port int) Check {
	ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return Check{Name: "web_port", Status: StatusWarn, Detail: fmt.Sprintf("port %d is not available: %v", port, err)}
	}
	ln.Close()
	return Check{Name: "web_port", Status: StatusOK, Detail: fmt.Sprintf("port %d is available", port)}
}

func checkExportDir(dir string) Check {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Check{Name: "export_dir", Status: StatusFail, Detail: fmt.Sprintf("cannot create %s: %v", dir, err)}
	}
	probe := filepath.Join(dir, ".write_probe")
	if err := os.WriteFile(probe, []byte("probe"), 0o644); err != nil {
		return Check{Name: "export_dir", Status: StatusFail, Detail: fmt.Sprintf("cannot write to %s: %v", dir, err)}
	}
	os.Remove(probe)
	return Check{Name: "export_dir", Status: StatusOK, Detail: fmt.Sprintf("%s is writable", dir)}
}

func checkHost() Check {
	info, err := host.Info()
	if err != nil {
		return Check{Name: "host", Status: StatusWarn, Detail: err.Error()}
	}
	return Check{
		Name:   "host",
		Status: StatusOK,
		Detail: fmt.Sprintf("%s %s (%s), uptime %s", info.Platform, info.PlatformVersion, info.KernelArch, (time.Duration(info.Uptime) * time.Second).String()),
	}
}

func checkMemory() Check {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return Check{Name: "memory", Status: StatusWarn, Detail: err.Error()}
	}
	status := StatusOK
	if vm.UsedPercent > 90 {
		status = StatusWarn
	}
	return Check{
		Name:   "memory",
		Status: status,
		Detail: fmt.Sprintf("%.1f%% used of %d MB", vm.UsedPercent, vm.Total/1024/1024),
	}
}

func checkCPU() Check {
	count, err := cpu.Counts(true)
	if err != nil {
		return Check{Name: "cpu", Status: StatusWarn, Detail: err.Error()}
	}
	return Check{Name: "cpu", Status: StatusOK, Detail: fmt.Sprintf("%d logical cores", count)}
}

// String renders the report for terminal output.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Health report (%s)\n", r.GeneratedAt.Format(time.RFC1123))
	for _, c := range r.Checks {
		marker := "✓"
		switch c.Status {
		case StatusWarn:
			marker = "⚠"
		case StatusFail:
			marker = "✗"
		}
		fmt.Fprintf(&b, "  %s %-12s %s\n", marker, c.Name, c.Detail)
	}
	if r.Healthy {
		b.WriteString("Overall: healthy\n")
	} else {
		b.WriteString("Overall: unhealthy\n")
	}
	return b.String()
}
