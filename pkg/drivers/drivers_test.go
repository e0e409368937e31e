package drivers

import (
	"context"
	"fmt"
	"strings"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
)

// fakeRunner records commands and serves canned responses, keyed by
// the joined command line.
type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		outputs: make(map[string]string),
		errs:    make(map[string]error),
	}
}

func key(name string, args ...string) string {
	return name + " " + strings.Join(args, " ")
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	k := key(name, args...)
	r.calls = append(r.calls, k)
	return r.errs[k]
}

func (r *fakeRunner) Output(_ context.Context, name string, args ...string) (string, error) {
	k := key(name, args...)
	r.calls = append(r.calls, k)
	if err := r.errs[k]; err != nil {
		return "", err
	}
	return r.outputs[k], nil
}

func (r *fakeRunner) called(k string) bool {
	for _, c := range r.calls {
		if c == k {
			return true
		}
	}
	return false
}

// fakeFetcher serves canned bodies per URL.
type fakeFetcher struct {
	bodies map[string][]byte
	err    error
	calls  int
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.bodies[url]
	if !ok {
		return nil, engine.NewPermanentError(fmt.Sprintf("fetch %s: not found", url), nil)
	}
	return body, nil
}

func resource(kind engine.Kind, name string, params map[string]string) engine.Resource {
	return engine.Resource{Kind: kind, Name: name, Params: params}
}

func actionFor(driver engine.Driver, res engine.Resource, probe engine.ProbeResult) engine.Action {
	verb, rationale := driver.PlanAction(res, probe)
	return engine.Action{
		ResourceID: res.ID(),
		Verb:       verb,
		Rationale:  rationale,
		Resource:   res,
		Probe:      probe,
	}
}
