// Package drivers implements the per-resource-kind probe/plan/apply
// logic: apt packages and repositories, downloaded files, symlinks,
// shell-rc lines, group memberships, and systemd unit enablement.
//
// Every apply re-checks the precondition the action was planned
// against and degrades to a skip when another process already
// converged the resource.
package drivers
