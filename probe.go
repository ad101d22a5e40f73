package demux

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// IsPathExtension reports whether the instance path's last dot-suffix
// matches ext, case-insensitively. The leading dot is optional on ext.
func (in *Instance) IsPathExtension(ext string) bool {
	idx := strings.LastIndexByte(in.path, '.')
	if idx < 0 {
		return false
	}
	return strings.EqualFold(in.path[idx+1:], strings.TrimPrefix(ext, "."))
}

// IsForced reports whether the user explicitly requested this demux method
// by name: an exact, case-sensitive match against the instance's demux name.
// Forcing bypasses extension matching entirely.
func (in *Instance) IsForced(name string) bool {
	return in.name != "" && in.name == name
}

// OpenFunc probes an instance and, on acceptance, returns a ready Demuxer.
// Declining must return ErrUnsupported (or ErrNotEnoughData) and leave no
// side effects on the instance or its collaborators; any other error is a
// real failure that aborts format selection.
type OpenFunc func(in *Instance) (Demuxer, error)

// Format describes one registered container format.
type Format struct {
	// Name is the demux-method name matched by IsForced.
	Name string
	// Extension is the path extension matched by IsPathExtension, without
	// the dot. Empty when the format has no characteristic extension.
	Extension string
	// Open probes and opens the format.
	Open OpenFunc
}

// Matches reports whether the selection predicates accept the instance:
// extension match or forced-name match, never requiring both.
func (f Format) Matches(in *Instance) bool {
	if f.Extension != "" && in.IsPathExtension(f.Extension) {
		return true
	}
	return in.IsForced(f.Name)
}

// Registry holds the known formats in registration order and selects the
// first one that accepts a stream.
type Registry struct {
	mu      sync.RWMutex
	formats []Format
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a format. Registration order is probe order.
func (r *Registry) Register(f Format) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats = append(r.formats, f)
}

// Formats returns the registered formats in probe order.
func (r *Registry) Formats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Format, len(r.formats))
	copy(out, r.formats)
	return out
}

// Open probes the registered formats against the instance and returns the
// first accepting demuxer. A format declining with ErrUnsupported or
// ErrNotEnoughData moves probing along; any other error (an allocation or
// I/O failure inside an accepting format) aborts selection immediately.
func (r *Registry) Open(in *Instance) (Demuxer, error) {
	if in.Out == nil {
		return nil, fmt.Errorf("demux: instance has no output sink")
	}

	for _, f := range r.Formats() {
		d, err := f.Open(in)
		if err == nil {
			return d, nil
		}
		if errors.Is(err, ErrUnsupported) || errors.Is(err, ErrNotEnoughData) {
			continue
		}
		return nil, fmt.Errorf("demux: open %s: %w", f.Name, err)
	}
	return nil, ErrUnsupported
}
