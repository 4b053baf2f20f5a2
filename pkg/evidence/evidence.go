// Package evidence implements evidence references and SHA256 hashing for
// ticket bundles.
package evidence

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Ref points at one evidence file with its integrity hash. Tickets embed
// refs rather than raw paths so a moved or tampered file is detectable.
type Ref struct {
	Kind   string `json:"kind"             yaml:"kind"` // screenshot, action_log, snapshot, text
	Path   string `json:"path"             yaml:"path"`
	SHA256 string `json:"sha256,omitempty" yaml:"sha256,omitempty"`
	Size   int64  `json:"size,omitempty"   yaml:"size,omitempty"`
}

// NewRef hashes an existing file into a reference of the given kind.
func NewRef(kind, path string) (*Ref, error) {
	hash, size, err := HashFile(path)
	if err != nil {
		return nil, fmt.Errorf("hash evidence: %w", err)
	}
	return &Ref{Kind: kind, Path: path, SHA256: hash, Size: size}, nil
}

// Verify re-hashes the file and reports whether it still matches the ref.
func (r *Ref) Verify() (bool, error) {
	hash, _, err := HashFile(r.Path)
	if err != nil {
		return false, err
	}
	return hash == r.SHA256, nil
}

// CopyInto copies the referenced file into dir, returning a new ref whose
// path is inside dir. The copy is re-hashed to catch a torn write.
func (r *Ref) CopyInto(dir string) (*Ref, error) {
	dst := filepath.Join(dir, filepath.Base(r.Path))
	if err := copyFile(r.Path, dst); err != nil {
		return nil, err
	}
	hash, size, err := HashFile(dst)
	if err != nil {
		return nil, err
	}
	if r.SHA256 != "" && hash != r.SHA256 {
		return nil, fmt.Errorf("evidence copy of %s corrupted (hash mismatch)", r.Path)
	}
	return &Ref{Kind: r.Kind, Path: dst, SHA256: hash, Size: size}, nil
}

// HashFile computes the SHA256 hash and size of a file.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), size, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open evidence source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create evidence copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy evidence: %w", err)
	}
	return out.Close()
}
