// Package policy evaluates Rego policies against computed plans before
// they are applied. Built-in policies guard against risky manifests,
// such as downloads without a declared checksum; additional .rego
// files can be loaded from disk.
package policy
