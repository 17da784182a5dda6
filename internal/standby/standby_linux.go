package standby

import (
	"fmt"
	"os/exec"
)

// Inhibit takes a systemd sleep and idle inhibitor held by a cat process
// that exits when its stdin closes.
func Inhibit(reason string) (Lock, error) {
	path, err := exec.LookPath("systemd-inhibit")
	if err != nil {
		return nil, fmt.Errorf("sleep inhibition unavailable: %w", err)
	}
	cmd := exec.Command(path, "--what=sleep:idle", "--who="+who, "--why="+reason, "--mode=block", "cat")
	lock, err := startCommand(cmd, true)
	if err != nil {
		return nil, fmt.Errorf("error starting systemd-inhibit: %w", err)
	}
	return lock, nil
}
