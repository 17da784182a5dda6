// Package standby keeps the machine from sleeping while downloads run.
package standby

import (
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	who          = "partdl"
	releaseGrace = 2 * time.Second
)

// Lock is held until Release; Release is safe to call more than once.
type Lock interface {
	Release() error
}

type noopLock struct{}

func (noopLock) Release() error { return nil }

// Noop returns a Lock that does nothing, for runs with keep-awake off.
func Noop() Lock { return noopLock{} }

// commandLock holds an inhibiting helper process for as long as it runs.
// With stdin set the helper exits once stdin closes; otherwise it is killed.
type commandLock struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	done  chan struct{}
	once  sync.Once
}

func startCommand(cmd *exec.Cmd, viaStdin bool) (*commandLock, error) {
	l := &commandLock{cmd: cmd, done: make(chan struct{})}
	if viaStdin {
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		l.stdin = stdin
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	log.Debug().Str("op", "standby/inhibit").Str("cmd", cmd.Path).Int("pid", cmd.Process.Pid).Msg("Sleep inhibited")
	go func() {
		cmd.Wait()
		close(l.done)
	}()
	return l, nil
}

func (l *commandLock) Release() error {
	l.once.Do(func() {
		if l.stdin != nil {
			l.stdin.Close()
		} else {
			l.cmd.Process.Kill()
		}
		select {
		case <-l.done:
		case <-time.After(releaseGrace):
			l.cmd.Process.Kill()
			<-l.done
		}
		log.Debug().Str("op", "standby/release").Msg("Sleep inhibition released")
	})
	return nil
}
