// Package source models the files a build consumes and discovers them on disk.
package source

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/inful/mdfp"
)

// Fingerprint identifies one revision of a file's content.
type Fingerprint struct {
	Hash    string `json:"hash"`
	ModTime int64  `json:"mod_time"` // unix nanoseconds
}

// Key renders the fingerprint as a compact string usable as a map key.
func (f Fingerprint) Key() string {
	return fmt.Sprintf("%s@%d", f.Hash, f.ModTime)
}

// IsZero reports whether the fingerprint was never computed.
func (f Fingerprint) IsZero() bool { return f.Hash == "" && f.ModTime == 0 }

// ComputeFingerprint hashes content and combines it with the modification time.
func ComputeFingerprint(content []byte, modTime time.Time) Fingerprint {
	return Fingerprint{
		Hash:    mdfp.CalculateFingerprintFromParts("", string(content)),
		ModTime: modTime.UnixNano(),
	}
}

// File is one input unit of a build. Path is slash-separated and relative to
// the corpus root. A File is immutable for the duration of a build.
type File struct {
	Path        string
	Content     []byte
	ModTime     time.Time
	Fingerprint Fingerprint
}

// NewFile builds a File and computes its fingerprint.
func NewFile(p string, content []byte, modTime time.Time) File {
	return File{
		Path:        path.Clean(strings.ReplaceAll(p, "\\", "/")),
		Content:     content,
		ModTime:     modTime,
		Fingerprint: ComputeFingerprint(content, modTime),
	}
}

// DocID returns the document id of the file: its path without extension.
func (f File) DocID() string { return DocID(f.Path) }

// DocID strips the extension from a slash-separated relative path.
func DocID(p string) string {
	return strings.TrimSuffix(p, path.Ext(p))
}
