// Package system wraps the external collaborators the drivers shell
// out to: subprocess invocation and network fetches. Both are behind
// small interfaces so driver tests can substitute fakes.
package system
