// Package engine implements the reconciliation core of ubuntu-setup:
// Manifest -> Probe -> Plan -> Apply -> Report.
//
// The engine compares a declarative desired-state manifest against the
// observed machine state and emits only the actions needed to converge.
// Resource-kind specifics (how to probe a package, how to fetch a file)
// live behind the Driver interface; the engine owns ordering, retries,
// failure isolation, and record keeping.
package engine
