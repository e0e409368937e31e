package drivers

import (
	"context"
	"os"
	"strings"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
)

// ShellRcLineDriver ensures a line is present in a shell startup file.
//
// Parameters: "file" is the rc file path, "line" the exact line to
// ensure. Matching ignores surrounding whitespace; apply appends, never
// rewrites existing content.
type ShellRcLineDriver struct{}

// NewShellRcLineDriver creates the shell-rc-line driver.
func NewShellRcLineDriver() *ShellRcLineDriver { return &ShellRcLineDriver{} }

// Kind implements engine.Driver.
func (d *ShellRcLineDriver) Kind() engine.Kind { return engine.KindShellRcLine }

// LockKey implements engine.Driver.
func (d *ShellRcLineDriver) LockKey() string { return "" }

// Retryable implements engine.Driver.
func (d *ShellRcLineDriver) Retryable() bool { return false }

// Probe scans the rc file for the declared line.
func (d *ShellRcLineDriver) Probe(ctx context.Context, res engine.Resource) engine.ProbeResult {
	data, err := os.ReadFile(res.Param("file"))
	if err != nil {
		if os.IsNotExist(err) {
			return engine.ProbeResult{ResourceID: res.ID(), Present: false}
		}
		return engine.ProbeResult{ResourceID: res.ID(), Present: false, Detail: err.Error()}
	}

	want := strings.TrimSpace(res.Param("line"))
	for _, have := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(have) == want {
			return engine.ProbeResult{ResourceID: res.ID(), Present: true}
		}
	}
	return engine.ProbeResult{ResourceID: res.ID(), Present: false}
}

// PlanAction implements engine.Driver.
func (d *ShellRcLineDriver) PlanAction(res engine.Resource, current engine.ProbeResult) (engine.Verb, string) {
	if current.Present {
		return engine.VerbSkip, "line already present"
	}
	return engine.VerbCreate, "line not present"
}

// Apply appends the line, creating the file when missing.
func (d *ShellRcLineDriver) Apply(ctx context.Context, action engine.Action) (engine.Outcome, error) {
	res := action.Resource

	if probe := d.Probe(ctx, res); probe.Present {
		return engine.OutcomeSkipped, nil
	}

	file := res.Param("file")
	line := strings.TrimSpace(res.Param("line"))
	if file == "" || line == "" {
		return engine.OutcomeFailed, engine.NewPermanentError("shell-rc-line requires file and line parameters", nil).
			WithResource(res.ID()).WithVerb(action.Verb)
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return engine.OutcomeFailed, engine.NewPermanentError("open rc file", err).
			WithResource(res.ID()).WithVerb(action.Verb)
	}
	defer f.Close()

	// Keep the appended line on its own line even when the file does
	// not end with a newline.
	entry := line + "\n"
	if info, err := f.Stat(); err == nil && info.Size() > 0 {
		buf := make([]byte, 1)
		if _, err := f.ReadAt(buf, info.Size()-1); err == nil && buf[0] != '\n' {
			entry = "\n" + entry
		}
	}

	if _, err := f.WriteString(entry); err != nil {
		return engine.OutcomeFailed, engine.NewPermanentError("append rc line", err).
			WithResource(res.ID()).WithVerb(action.Verb)
	}
	return engine.OutcomeSucceeded, nil
}
