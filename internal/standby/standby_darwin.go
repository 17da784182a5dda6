package standby

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// Inhibit runs caffeinate tied to this process so a crash cannot leave the
// assertion behind.
func Inhibit(reason string) (Lock, error) {
	path, err := exec.LookPath("caffeinate")
	if err != nil {
		return nil, fmt.Errorf("sleep inhibition unavailable: %w", err)
	}
	lock, err := startCommand(exec.Command(path, "-i", "-w", strconv.Itoa(os.Getpid())), false)
	if err != nil {
		return nil, fmt.Errorf("error starting caffeinate for %q: %w", reason, err)
	}
	return lock, nil
}
