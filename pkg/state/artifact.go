package state

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	artifactOnce sync.Once
	artifactRoot string
)

// ArtifactRoot returns the operator-configured base directory for runtime
// artifacts such as telemetry traces, taken from INBOXD_ARTIFACT_ROOT and
// normalized to an absolute path. Empty means unset; callers then fall back
// to the state dir layout.
func ArtifactRoot() string {
	artifactOnce.Do(func() {
		raw := strings.TrimSpace(os.Getenv("INBOXD_ARTIFACT_ROOT"))
		if raw == "" {
			return
		}
		if abs, err := filepath.Abs(raw); err == nil {
			artifactRoot = abs
		} else {
			artifactRoot = raw
		}
	})
	return artifactRoot
}

// ArtifactPath joins elem onto the artifact root, or returns "" when no root
// is configured.
func ArtifactPath(elem ...string) string {
	root := ArtifactRoot()
	if root == "" {
		return ""
	}
	return filepath.Join(append([]string{root}, elem...)...)
}
