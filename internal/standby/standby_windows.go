package standby

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/windows"
)

const (
	esContinuous     = 0x80000000
	esSystemRequired = 0x00000001
)

var setThreadExecutionState = windows.NewLazySystemDLL("kernel32.dll").NewProc("SetThreadExecutionState")

// threadLock pins one OS thread for the life of the lock because the
// execution state belongs to the calling thread.
type threadLock struct {
	release chan struct{}
	done    chan struct{}
	once    sync.Once
}

func Inhibit(reason string) (Lock, error) {
	if err := setThreadExecutionState.Find(); err != nil {
		return nil, fmt.Errorf("sleep inhibition unavailable: %w", err)
	}
	l := &threadLock{release: make(chan struct{}), done: make(chan struct{})}
	started := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(l.done)
		if r, _, err := setThreadExecutionState.Call(esContinuous | esSystemRequired); r == 0 {
			started <- fmt.Errorf("SetThreadExecutionState: %w", err)
			return
		}
		started <- nil
		<-l.release
		setThreadExecutionState.Call(esContinuous)
	}()
	if err := <-started; err != nil {
		return nil, err
	}
	log.Debug().Str("op", "standby/inhibit").Str("reason", reason).Msg("Sleep inhibited")
	return l, nil
}

func (l *threadLock) Release() error {
	l.once.Do(func() {
		close(l.release)
		<-l.done
	})
	return nil
}
