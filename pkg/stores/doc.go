// Package stores persists run history. The SQLite store keeps every
// run and its per-resource execution records so previous runs can be
// inspected after the fact with the history command.
package stores
