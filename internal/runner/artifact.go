package runner

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ibeckermayer/shotgrid/internal/types"
)

// maxNameLen bounds the URL-derived part of an artifact file name
const maxNameLen = 120

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9.-]+`)

// ArtifactPath returns where the screenshot for tc in run is stored:
// {dir}/{browser}/{device}/{url}_{digest}_{timestamp}_{run id}.png.
// The digest covers the full URL since the slug is lossy, and the run id
// suffix keeps runs started within the same second apart.
func ArtifactPath(dir string, run RunInfo, tc types.TestCase) string {
	name := SanitizeURL(tc.URL) + "_" + digest(tc.URL) + "_" + run.Timestamp.UTC().Format("20060102-150405")
	if id := shortID(run.ID); id != "" {
		name += "_" + id
	}
	return filepath.Join(dir, string(tc.Browser), deviceDir(tc.Device.Name), name+".png")
}

// SanitizeURL turns a URL into a file-name-safe string, dropping the scheme
func SanitizeURL(rawURL string) string {
	s := rawURL
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = sanitize(s)
	if len(s) > maxNameLen {
		s = s[:maxNameLen]
	}
	if s == "" {
		return "page"
	}
	return s
}

// deviceDir keeps clean device names readable. Names that had to be
// rewritten get a digest so "my device" and "my_device" stay apart.
func deviceDir(name string) string {
	clean := sanitize(name)
	if clean == name && clean != "" {
		return clean
	}
	if clean == "" {
		clean = "device"
	}
	return clean + "_" + digest(name)
}

func sanitize(s string) string {
	return strings.Trim(unsafeChars.ReplaceAllString(s, "_"), "_.")
}

// digest is the first 8 hex characters of the SHA-256 of s
func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:4])
}

func shortID(id string) string {
	id = sanitize(strings.ReplaceAll(id, "-", ""))
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeArtifact(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
