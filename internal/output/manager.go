package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/tanq16/partdl/internal/utils"
)

const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusSuccess  = "success"
	StatusSkipped  = "skipped"
	StatusError    = "error"
	progressBarLen = 30
)

type TaskOutput struct {
	ID          int
	Label       string
	Status      string
	Message     string
	Initial     int64
	Completed   int64
	Total       int64
	Complete    bool
	StartTime   time.Time
	LastUpdated time.Time
	Error       error
}

type ErrorReport struct {
	Label string
	Error error
	Time  time.Time
}

// Manager renders the state of every task of a run. On a terminal it redraws
// in place on a ticker; otherwise only the final summary is written.
type Manager struct {
	out         io.Writer
	live        bool
	outputs     map[int]*TaskOutput
	mutex       sync.RWMutex
	numLines    int
	errors      []ErrorReport
	doneCh      chan struct{}
	displayTick time.Duration
	taskCount   int
	displayWg   sync.WaitGroup
	stopOnce    sync.Once
}

func NewManager(out io.Writer) *Manager {
	live := false
	if f, ok := out.(*os.File); ok {
		live = term.IsTerminal(int(f.Fd()))
	}
	return &Manager{
		out:         out,
		live:        live,
		outputs:     make(map[int]*TaskOutput),
		doneCh:      make(chan struct{}),
		displayTick: 300 * time.Millisecond,
	}
}

func (m *Manager) Register(label string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.taskCount++
	now := time.Now()
	m.outputs[m.taskCount] = &TaskOutput{
		ID:          m.taskCount,
		Label:       label,
		Status:      StatusPending,
		StartTime:   now,
		LastUpdated: now,
	}
	return m.taskCount
}

func (m *Manager) update(id int, fn func(info *TaskOutput)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		fn(info)
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) SetLabel(id int, label string) {
	m.update(id, func(info *TaskOutput) { info.Label = label })
}

// SetProgress records the byte counters of a task and marks it active.
func (m *Manager) SetProgress(id int, completed, total int64) {
	m.update(id, func(info *TaskOutput) {
		if info.Status == StatusPending {
			info.Status = StatusActive
			info.StartTime = time.Now()
			info.Initial = completed
		}
		info.Completed = completed
		info.Total = total
	})
}

func (m *Manager) Complete(id int, message string) {
	m.finish(id, StatusSuccess, message)
}

func (m *Manager) Skip(id int, message string) {
	m.finish(id, StatusSkipped, message)
}

func (m *Manager) finish(id int, status, message string) {
	m.update(id, func(info *TaskOutput) {
		info.Complete = true
		info.Status = status
		info.Message = message
	})
}

func (m *Manager) ReportError(id int, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		info.Complete = true
		info.Status = StatusError
		info.Error = err
		info.Message = fmt.Sprintf("Failed %s", info.Label)
		info.LastUpdated = time.Now()
		m.errors = append(m.errors, ErrorReport{
			Label: info.Label,
			Error: err,
			Time:  info.LastUpdated,
		})
	}
}

func (m *Manager) Get(id int) (TaskOutput, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	info, exists := m.outputs[id]
	if !exists {
		return TaskOutput{}, false
	}
	return *info, true
}

func statusIndicator(status string) string {
	switch status {
	case StatusSuccess:
		return successStyle.Render(StyleSymbols["pass"])
	case StatusError:
		return errorStyle.Render(StyleSymbols["fail"])
	case StatusSkipped:
		return warningStyle.Render(StyleSymbols["skip"])
	case StatusPending:
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func styleMessage(status, message string) string {
	switch status {
	case StatusSuccess:
		return successStyle.Render(message)
	case StatusError:
		return errorStyle.Render(message)
	case StatusSkipped:
		return warningStyle.Render(message)
	default:
		return pendingStyle.Render(message)
	}
}

func (m *Manager) sortTasks() (active, pending, completed []*TaskOutput) {
	var all []*TaskOutput
	for _, info := range m.outputs {
		all = append(all, info)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].ID < all[j].ID
	})
	for _, t := range all {
		switch {
		case t.Complete:
			completed = append(completed, t)
		case t.Status == StatusPending:
			pending = append(pending, t)
		default:
			active = append(active, t)
		}
	}
	return active, pending, completed
}

func (m *Manager) renderLines() []string {
	activeTasks, pendingTasks, completedTasks := m.sortTasks()
	indent := strings.Repeat(" ", 2)
	var lines []string
	for _, t := range activeTasks {
		elapsed := time.Since(t.StartTime)
		lines = append(lines, fmt.Sprintf("%s%s %s %s", indent, statusIndicator(t.Status),
			debugStyle.Render(elapsed.Round(time.Second).String()), pendingStyle.Render(t.Label)))
		bar := PrintProgressBar(t.Completed, t.Total, progressBarLen)
		sizes := fmt.Sprintf("%s / %s", utils.FormatBytes(uint64(t.Completed)), utils.FormatBytes(uint64(t.Total)))
		speed := utils.FormatSpeed(t.Completed-t.Initial, elapsed.Seconds())
		lines = append(lines, fmt.Sprintf("%s%s%s %s %s", strings.Repeat(" ", 2+4), bar,
			debugStyle.Render(sizes), StyleSymbols["bullet"], debugStyle.Render(speed)))
	}
	if len(pendingTasks) > 0 {
		lines = append(lines, fmt.Sprintf("%s%s %s", indent, statusIndicator(StatusPending),
			pendingStyle.Render(fmt.Sprintf("%d waiting...", len(pendingTasks)))))
	}
	if len(completedTasks) > 10 {
		lines = append(lines, infoStyle.Render(fmt.Sprintf("%s%d links completed with varying hidden status ...", indent, len(completedTasks)-8)))
		completedTasks = completedTasks[len(completedTasks)-8:]
	}
	for _, t := range completedTasks {
		totalTime := t.LastUpdated.Sub(t.StartTime).Round(time.Second)
		lines = append(lines, fmt.Sprintf("%s%s %s %s", indent, statusIndicator(t.Status),
			debugStyle.Render(totalTime.String()), styleMessage(t.Status, t.Message)))
	}
	return lines
}

func (m *Manager) updateDisplay() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	availableLines := getTerminalHeight() - 3
	if m.numLines > 0 {
		fmt.Fprintf(m.out, "\033[%dA\033[J", m.numLines)
	}
	lines := m.renderLines()
	if len(lines) > availableLines {
		lines = lines[len(lines)-max(availableLines, 0):]
	}
	for _, line := range lines {
		fmt.Fprintln(m.out, line)
	}
	m.numLines = len(lines)
}

func (m *Manager) StartDisplay() {
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if m.live {
					m.updateDisplay()
				}
			case <-m.doneCh:
				if m.live {
					m.updateDisplay()
				}
				m.ShowSummary()
				return
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	m.stopOnce.Do(func() { close(m.doneCh) })
	m.displayWg.Wait()
}

func (m *Manager) displayErrors() {
	if len(m.errors) == 0 {
		return
	}
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Bold(true).Render("Errors:"))
	for i, err := range m.errors {
		fmt.Fprintf(m.out, "%s%s %s %s\n",
			strings.Repeat(" ", 2+2),
			errorStyle.Render(fmt.Sprintf("%d.", i+1)),
			debugStyle.Render(fmt.Sprintf("[%s]", err.Time.Format("15:04:05"))),
			errorStyle.Render(fmt.Sprintf("File: %s", err.Label)))
		fmt.Fprintf(m.out, "%s%s\n", strings.Repeat(" ", 2+4), errorStyle.Render(fmt.Sprintf("Error: %v", err.Error)))
	}
}

func (m *Manager) ShowSummary() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	fmt.Fprintln(m.out)
	var success, skipped, failures int
	for _, info := range m.outputs {
		switch info.Status {
		case StatusSuccess:
			success++
		case StatusSkipped:
			skipped++
		case StatusError:
			failures++
		}
	}
	total := len(m.outputs)
	fmt.Fprintln(m.out, strings.Repeat(" ", 2)+success2Style.Render(fmt.Sprintf("Completed %d of %d", success, total)))
	if skipped > 0 {
		fmt.Fprintln(m.out, strings.Repeat(" ", 2)+warningStyle.Render(fmt.Sprintf("Skipped %d of %d (already downloaded)", skipped, total)))
	}
	if failures > 0 {
		fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, total)))
	}
	m.displayErrors()
	fmt.Fprintln(m.out)
}
