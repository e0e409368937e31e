// Package manifest loads desired-state manifests. YAML is the primary
// format; CUE manifests are accepted by file extension and validated
// against an embedded schema. Structural validation uses struct tags;
// graph-level validation (cycles, dangling dependencies) lives in the
// engine.
package manifest
