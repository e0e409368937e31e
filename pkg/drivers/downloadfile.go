package drivers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
	"github.com/rafaelcathomen/ubuntu-setup/pkg/system"
)

// DownloadedFileDriver fetches a file from a URL to a local path.
//
// Parameters: "url" and "path" are required; "sha256" pins the expected
// content hash; "mode" is the octal file mode (default 0644).
//
// The fetch lands in a staging file and is renamed into place only
// after the checksum verifies, so a failed or corrupt download never
// leaves a partial file at the final path.
type DownloadedFileDriver struct {
	fetcher system.Fetcher
}

// NewDownloadedFileDriver creates the download driver.
func NewDownloadedFileDriver(fetcher system.Fetcher) *DownloadedFileDriver {
	return &DownloadedFileDriver{fetcher: fetcher}
}

// Kind implements engine.Driver.
func (d *DownloadedFileDriver) Kind() engine.Kind { return engine.KindDownloadedFile }

// LockKey implements engine.Driver.
func (d *DownloadedFileDriver) LockKey() string { return "" }

// Retryable implements engine.Driver.
func (d *DownloadedFileDriver) Retryable() bool { return true }

// Probe checks for the file and, when a checksum is declared, whether
// the content matches it.
func (d *DownloadedFileDriver) Probe(ctx context.Context, res engine.Resource) engine.ProbeResult {
	path := res.Param("path")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return engine.ProbeResult{ResourceID: res.ID(), Present: false}
		}
		return engine.ProbeResult{ResourceID: res.ID(), Present: false, Detail: err.Error()}
	}
	defer f.Close()

	want := res.Param("sha256")
	if want == "" {
		return engine.ProbeResult{ResourceID: res.ID(), Present: true}
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return engine.ProbeResult{ResourceID: res.ID(), Present: false, Detail: err.Error()}
	}
	got := hex.EncodeToString(h.Sum(nil))
	return engine.ProbeResult{
		ResourceID: res.ID(),
		Present:    got == want,
		Observed:   got,
	}
}

// PlanAction implements engine.Driver.
func (d *DownloadedFileDriver) PlanAction(res engine.Resource, current engine.ProbeResult) (engine.Verb, string) {
	if current.Present {
		return engine.VerbSkip, "file present with matching content"
	}
	if current.Observed != "" {
		return engine.VerbUpdate, fmt.Sprintf("checksum %s does not match declaration", current.Observed)
	}
	return engine.VerbCreate, "file absent"
}

// Apply fetches, verifies, and atomically installs the file.
func (d *DownloadedFileDriver) Apply(ctx context.Context, action engine.Action) (engine.Outcome, error) {
	res := action.Resource

	if probe := d.Probe(ctx, res); probe.Present {
		return engine.OutcomeSkipped, nil
	}

	url := res.Param("url")
	path := res.Param("path")
	if url == "" || path == "" {
		return engine.OutcomeFailed, engine.NewPermanentError("downloaded-file requires url and path parameters", nil).
			WithResource(res.ID()).WithVerb(action.Verb)
	}

	data, err := d.fetcher.Fetch(ctx, url)
	if err != nil {
		return engine.OutcomeFailed, err
	}

	if want := res.Param("sha256"); want != "" {
		sum := sha256.Sum256(data)
		got := hex.EncodeToString(sum[:])
		if got != want {
			return engine.OutcomeFailed, engine.NewIntegrityError(
				fmt.Sprintf("checksum mismatch: declared %s, fetched %s", want, got), nil,
			).WithResource(res.ID()).WithVerb(action.Verb)
		}
	}

	mode := os.FileMode(0o644)
	if raw := res.Param("mode"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 8, 32)
		if err != nil {
			return engine.OutcomeFailed, engine.NewPermanentError("invalid mode parameter", err).
				WithResource(res.ID()).WithVerb(action.Verb)
		}
		mode = os.FileMode(parsed)
	}

	if err := writeFileAtomic(path, data, mode); err != nil {
		return engine.OutcomeFailed, engine.NewPermanentError("install downloaded file", err).
			WithResource(res.ID()).WithVerb(action.Verb)
	}
	return engine.OutcomeSucceeded, nil
}
