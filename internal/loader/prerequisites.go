package loader

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"
)

// PrerequisiteCheck is the outcome of checking one tool.
type PrerequisiteCheck struct {
	Name      string
	Available bool
	// Required checks fail the load when unavailable
	Required bool
	Path     string
	Version  string
	Message  string
	Error    error
}

// CheckPrerequisites looks for the GDB binary and an OpenOCD listener.
// OpenOCD is reported but not required: it may be started after the check.
func CheckPrerequisites(ctx context.Context, config Config) []PrerequisiteCheck {
	return []PrerequisiteCheck{
		checkGDBBinary(ctx, config.GDBPath),
		checkOpenOCDConnection(ctx, config.OpenOCDHost, config.OpenOCDPort),
	}
}

func checkGDBBinary(ctx context.Context, gdbPath string) PrerequisiteCheck {
	check := PrerequisiteCheck{Name: gdbPath, Required: true}

	path, err := exec.LookPath(gdbPath)
	if err != nil {
		check.Error = err
		check.Message = gdbPath + " not found in PATH\n" +
			"Install on macOS: brew install --cask gcc-arm-embedded\n" +
			"Install on Linux: sudo apt-get install gdb-multiarch and pass --gdb gdb-multiarch"
		return check
	}
	check.Path = path

	versionCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	output, err := exec.CommandContext(versionCtx, path, "--version").Output()
	if err != nil {
		check.Error = err
		check.Message = fmt.Sprintf("found at %s but failed to execute: %v", path, err)
		return check
	}

	if line, _, _ := strings.Cut(string(output), "\n"); line != "" {
		check.Version = strings.TrimSpace(line)
	}
	check.Available = true
	check.Message = "Found at " + path
	return check
}

func checkOpenOCDConnection(ctx context.Context, host string, port int) PrerequisiteCheck {
	check := PrerequisiteCheck{Name: "OpenOCD"}
	address := fmt.Sprintf("%s:%d", host, port)

	if err := ValidateOpenOCDConnection(ctx, host, port); err != nil {
		check.Error = err
		check.Message = fmt.Sprintf("cannot connect to %s; start OpenOCD before loading", address)
		return check
	}
	check.Available = true
	check.Message = "Listening on " + address
	return check
}

// ValidateGDBPath checks that gdbPath runs and is GNU GDB.
func ValidateGDBPath(ctx context.Context, gdbPath string) error {
	if gdbPath == "" {
		return &PrerequisiteError{
			Prerequisite: "arm-none-eabi-gdb",
			Details:      "GDB path is empty",
		}
	}

	versionCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	output, err := exec.CommandContext(versionCtx, gdbPath, "--version").Output()
	if err != nil {
		return &PrerequisiteError{
			Prerequisite: "arm-none-eabi-gdb",
			Details:      fmt.Sprintf("failed to execute %s --version", gdbPath),
			Err:          err,
		}
	}

	if !strings.Contains(string(output), "GNU gdb") {
		return &PrerequisiteError{
			Prerequisite: "arm-none-eabi-gdb",
			Details:      fmt.Sprintf("%s does not appear to be GNU GDB", gdbPath),
		}
	}

	return nil
}

// ValidateOpenOCDConnection dials OpenOCD's GDB port.
func ValidateOpenOCDConnection(ctx context.Context, host string, port int) error {
	dialer := net.Dialer{Timeout: 2 * time.Second}

	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return &ConnectionError{
			Host: host,
			Port: port,
			Err:  err,
		}
	}
	return conn.Close()
}
