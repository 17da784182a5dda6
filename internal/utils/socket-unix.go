//go:build linux || darwin

package utils

import (
	"golang.org/x/sys/unix"
)

func setSocketOptions(fd uintptr) {
	unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, 1024*1024)
	unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, 1024*1024)
}
