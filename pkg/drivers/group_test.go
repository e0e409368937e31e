package drivers

import (
	"context"
	"errors"
	"testing"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
)

func TestUserGroupDriver_Probe(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs[key("id", "-nG", "alice")] = "alice adm sudo docker\n"
	driver := NewUserGroupDriver(runner)

	t.Run("member", func(t *testing.T) {
		res := resource(engine.KindUserGroup, "alice-docker", map[string]string{"user": "alice", "group": "docker"})
		if probe := driver.Probe(context.Background(), res); !probe.Present {
			t.Error("expected present")
		}
	})

	t.Run("not a member", func(t *testing.T) {
		res := resource(engine.KindUserGroup, "alice-kvm", map[string]string{"user": "alice", "group": "kvm"})
		if probe := driver.Probe(context.Background(), res); probe.Present {
			t.Error("expected absent")
		}
	})

	t.Run("unknown user reads as absent", func(t *testing.T) {
		runner.errs[key("id", "-nG", "bob")] = errors.New("no such user")
		res := resource(engine.KindUserGroup, "bob-docker", map[string]string{"user": "bob", "group": "docker"})
		probe := driver.Probe(context.Background(), res)
		if probe.Present {
			t.Error("expected absent")
		}
		if probe.Detail == "" {
			t.Error("expected diagnostic detail")
		}
	})
}

func TestUserGroupDriver_Apply_AddsMembership(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs[key("id", "-nG", "alice")] = "alice adm\n"
	driver := NewUserGroupDriver(runner)

	res := resource(engine.KindUserGroup, "alice-docker", map[string]string{"user": "alice", "group": "docker"})
	action := actionFor(driver, res, engine.ProbeResult{Present: false})

	outcome, err := driver.Apply(context.Background(), action)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if outcome != engine.OutcomeSucceeded {
		t.Errorf("expected succeeded, got %s", outcome)
	}
	if !runner.called(key("usermod", "-aG", "docker", "alice")) {
		t.Errorf("expected usermod call, calls: %v", runner.calls)
	}
}

func TestUserGroupDriver_Apply_RecheckDegradesToSkip(t *testing.T) {
	runner := newFakeRunner()
	runner.outputs[key("id", "-nG", "alice")] = "alice adm docker\n"
	driver := NewUserGroupDriver(runner)

	res := resource(engine.KindUserGroup, "alice-docker", map[string]string{"user": "alice", "group": "docker"})
	action := actionFor(driver, res, engine.ProbeResult{Present: false})

	outcome, err := driver.Apply(context.Background(), action)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if outcome != engine.OutcomeSkipped {
		t.Errorf("expected skip after re-check, got %s", outcome)
	}
	if runner.called(key("usermod", "-aG", "docker", "alice")) {
		t.Error("usermod must not run when membership already exists")
	}
}
