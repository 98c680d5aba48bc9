package payload

import (
	"crypto/md5" //nolint:gosec // content fingerprint for file naming, not security
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Resolver maps payload names to files under the configured local prefixes.
type Resolver struct {
	prefixes []string
}

// NewResolver builds a Resolver over the given prefix list. Empty entries
// are dropped; order is preserved (first prefix wins).
func NewResolver(prefixes []string) *Resolver {
	kept := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if strings.TrimSpace(p) == "" {
			continue
		}
		kept = append(kept, p)
	}
	return &Resolver{prefixes: kept}
}

// Locate returns the path of the first existing payload file named name
// under the configured prefixes, or false when none exists.
func (r *Resolver) Locate(name string) (string, bool) {
	for _, prefix := range r.prefixes {
		candidate := filepath.Join(prefix, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// Install copies the payload file into the first writable prefix under
// {prefix}/{domain}/{md5sum}_{basename} and verifies the copy. With dryRun
// set, the destination is computed and returned without writing anything.
func (r *Resolver) Install(file, domain string, dryRun bool) (string, error) {
	if _, err := os.Stat(file); err != nil {
		return "", fmt.Errorf("payload file not found: %s", file)
	}

	prefix, err := r.writablePrefix()
	if err != nil {
		return "", err
	}

	sum, err := fileMD5(file)
	if err != nil {
		return "", fmt.Errorf("checksum payload file: %w", err)
	}

	destination := filepath.Join(prefix, domain, sum+"_"+filepath.Base(file))
	if dryRun {
		return destination, nil
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return "", fmt.Errorf("create payload directory: %w", err)
	}
	if err := copyFile(file, destination); err != nil {
		return "", fmt.Errorf("copy payload file: %w", err)
	}

	sumDst, err := fileMD5(destination)
	if err != nil {
		return "", fmt.Errorf("checksum copied payload: %w", err)
	}
	if sumDst != sum {
		return "", fmt.Errorf("payload copy to %s is corrupt", destination)
	}
	return destination, nil
}

// writablePrefix returns the first prefix that exists and is writable.
func (r *Resolver) writablePrefix() (string, error) {
	for _, prefix := range r.prefixes {
		info, err := os.Stat(prefix)
		if err != nil || !info.IsDir() {
			continue
		}
		if info.Mode().Perm()&0o300 != 0 {
			return prefix, nil
		}
	}
	return "", fmt.Errorf("no writable prefix among: %s", strings.Join(r.prefixes, ":"))
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New() //nolint:gosec
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
