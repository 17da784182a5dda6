//go:build !linux && !darwin && !windows

package standby

import (
	"fmt"
	"runtime"
)

func Inhibit(reason string) (Lock, error) {
	return nil, fmt.Errorf("sleep inhibition not supported on %s", runtime.GOOS)
}
