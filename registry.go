package edgelog

import (
	"context"
	"sort"
	"sync"
)

// MaskAll is the reserved rule-set name matching all data. It is registered
// on every Masker but is not globally active; callers must request it.
const MaskAll = "ALL"

// Masker holds the named mask rule sets, the subset of names applied to every
// sanitize call, and the Config the rule sets consult.
//
// The registry is read-mostly: Register and Unregister are expected at
// startup and around tests, sanitize calls may run concurrently at any time.
type Masker struct {
	cfg *Config

	mu         sync.RWMutex
	processors map[string]Processor
	global     map[string]struct{}
}

// NewMasker creates a Masker bound to cfg (DefaultConfig when nil) with the
// reserved "ALL" rule set pre-registered.
func NewMasker(cfg *Config) *Masker {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	m := &Masker{
		cfg:        cfg,
		processors: make(map[string]Processor),
		global:     make(map[string]struct{}),
	}

	m.Register(MaskAll, NewSensitivePaths("*"))

	return m
}

// Config returns the Config this Masker consults. The pointer is shared;
// mutating its fields reconfigures masking everywhere.
func (m *Masker) Config() *Config {
	return m.cfg
}

// Register stores p under name, replacing any previous entry.
func (m *Masker) Register(name string, p Processor) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processors[name] = p
}

// RegisterGlobal stores p under name and marks it as applied to every
// sanitize call, regardless of explicit or contextual selection.
func (m *Masker) RegisterGlobal(name string, p Processor) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.processors[name] = p
	m.global[name] = struct{}{}
}

// Unregister removes the named rule set and its global flag. Removing a name
// that was never registered is a no-op.
func (m *Masker) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.processors, name)
	delete(m.global, name)
}

// resolveNames returns the union of the explicit names, the names active on
// ctx, and the global names, sorted so that rule-set application order is
// deterministic.
func (m *Masker) resolveNames(ctx context.Context, names []string) []string {
	set := make(map[string]struct{}, len(names))

	for _, n := range names {
		set[n] = struct{}{}
	}

	for n := range activeMaskNameSet(ctx) {
		set[n] = struct{}{}
	}

	m.mu.RLock()
	for n := range m.global {
		set[n] = struct{}{}
	}
	m.mu.RUnlock()

	out := make([]string, 0, len(set))

	for n := range set {
		out = append(out, n)
	}

	sort.Strings(out)

	return out
}

var (
	defaultMasker      = NewMasker(DefaultConfig())
	defaultMaskerMutex = &sync.RWMutex{}
)

// DefaultMasker returns the process-wide Masker used when no explicit Masker
// is wired into the middleware or transport.
func DefaultMasker() *Masker {
	defaultMaskerMutex.RLock()
	defer defaultMaskerMutex.RUnlock()

	return defaultMasker
}

// SetDefaultMasker replaces the process-wide Masker.
func SetDefaultMasker(m *Masker) {
	if m == nil {
		return
	}

	defaultMaskerMutex.Lock()
	defer defaultMaskerMutex.Unlock()

	defaultMasker = m
}

// Register stores p under name on the default Masker.
func Register(name string, p Processor) {
	DefaultMasker().Register(name, p)
}

// RegisterGlobal stores p under name on the default Masker and applies it to
// every sanitize call.
func RegisterGlobal(name string, p Processor) {
	DefaultMasker().RegisterGlobal(name, p)
}

// Unregister removes the named rule set from the default Masker.
func Unregister(name string) {
	DefaultMasker().Unregister(name)
}

// SanitizeData returns a sanitized deep copy of data using the default Masker.
func SanitizeData(ctx context.Context, data map[string]any, names ...string) map[string]any {
	return DefaultMasker().SanitizeData(ctx, data, names...)
}

// SanitizeQuerystring sanitizes an encoded query string using the default Masker.
func SanitizeQuerystring(ctx context.Context, qs string, names ...string) string {
	return DefaultMasker().SanitizeQuerystring(ctx, qs, names...)
}

// SanitizeURL masks the query portion of rawURL using the default Masker.
func SanitizeURL(ctx context.Context, rawURL string, names ...string) string {
	return DefaultMasker().SanitizeURL(ctx, rawURL, names...)
}

// SanitizeAny sanitizes mapping or query-string data using the default
// Masker; anything else is returned unchanged.
func SanitizeAny(ctx context.Context, data any, names ...string) any {
	return DefaultMasker().SanitizeAny(ctx, data, names...)
}
