// Package auth resolves who is calling and what they asked for, from either
// a sealed platform credential or an interface bearer token.
package auth

import (
	"strings"

	"github.com/zulandar/graderqueue/internal/job"
	"github.com/zulandar/graderqueue/internal/models"
)

// SentinelID is the owner id of every job submitted through interface tokens.
const SentinelID int64 = -1

// Identity is the resolved caller.
type Identity struct {
	ID            int64
	Name          string
	RestrictPaths []string
	ForceTagID    *uint
}

// Sentinel returns the low-trust identity granted to interface tokens.
func Sentinel() Identity {
	return Identity{ID: SentinelID, Name: "interface"}
}

// IsSentinel reports whether the identity came from an interface token.
func (i Identity) IsSentinel() bool {
	return i.ID == SentinelID
}

// PlatformIdentity converts a platform row to an Identity.
func PlatformIdentity(p models.Platform) Identity {
	return Identity{
		ID:            p.ID,
		Name:          p.Name,
		RestrictPaths: SplitPaths(p.RestrictPaths),
		ForceTagID:    p.ForceTagID,
	}
}

// SplitPaths splits a stored comma separated path restriction.
func SplitPaths(s string) []string {
	var paths []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// RawRequest is what arrived on the wire.
type RawRequest struct {
	Fields map[string]string
	Upload *job.Upload
}

// Request is the logical request after authentication. On the sealed path
// Fields holds the decrypted claims only.
type Request struct {
	Fields map[string]string
	Upload *job.Upload
}

// Get returns a field and whether it was present.
func (r Request) Get(key string) (string, bool) {
	v, ok := r.Fields[key]
	return v, ok
}
