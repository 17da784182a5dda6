//go:build !windows

package standby

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireTool(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available", name)
	}
	return path
}

func TestCommandLockReleasesViaStdin(t *testing.T) {
	lock, err := startCommand(exec.Command(requireTool(t, "cat")), true)
	require.NoError(t, err)
	assert.NoError(t, lock.Release())
	assert.NotNil(t, lock.cmd.ProcessState, "helper should have exited")
	assert.NoError(t, lock.Release())
}

func TestCommandLockKillsHelper(t *testing.T) {
	lock, err := startCommand(exec.Command(requireTool(t, "sleep"), "30"), false)
	require.NoError(t, err)
	assert.NoError(t, lock.Release())
	assert.NotNil(t, lock.cmd.ProcessState)
}

func TestCommandLockStartFailure(t *testing.T) {
	_, err := startCommand(exec.Command("/nonexistent/inhibitor"), false)
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop().Release())
}
