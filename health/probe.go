package health

import (
	"fmt"
	"os"
	"time"

	"github.com/c360/cstrloop/errors"
)

// FileProbe writes a liveness timestamp to a file on each Touch, so
// container orchestrators can probe the process without the HTTP endpoint.
type FileProbe struct {
	path string
}

// NewFileProbe creates a probe writing to path. An empty path disables the
// probe; Touch becomes a no-op.
func NewFileProbe(path string) *FileProbe {
	return &FileProbe{path: path}
}

// Touch records the current time. Safe to call on a nil or disabled probe.
func (p *FileProbe) Touch() error {
	if p == nil || p.path == "" {
		return nil
	}
	stamp := fmt.Sprintf("%d\n", time.Now().Unix())
	if err := os.WriteFile(p.path, []byte(stamp), 0o644); err != nil {
		return errors.WrapTransient(err, "FileProbe", "Touch", "write probe file")
	}
	return nil
}

// Remove deletes the probe file on shutdown so a stale file never reads
// as live.
func (p *FileProbe) Remove() {
	if p == nil || p.path == "" {
		return
	}
	_ = os.Remove(p.path)
}
