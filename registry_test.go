package edgelog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMaskerDefaults(t *testing.T) {
	m := NewMasker(nil)

	assert.NotNil(t, m.Config())

	// ALL is pre-registered but must not be global.
	m.mu.RLock()
	_, registered := m.processors[MaskAll]
	_, global := m.global[MaskAll]
	m.mu.RUnlock()

	assert.True(t, registered)
	assert.False(t, global)
}

func TestUnregisterMissingIsNoOp(t *testing.T) {
	m := NewMasker(nil)

	assert.NotPanics(t, func() {
		m.Unregister("N/A")
	})
}

func TestUnregisterClearsGlobalFlag(t *testing.T) {
	m := newTestMasker()
	m.RegisterGlobal("simple", NewSensitivePaths("key1"))

	data := map[string]any{"key1": "secret"}

	got := m.SanitizeData(context.Background(), data)
	assert.Equal(t, MaskString, got["key1"])

	m.Unregister("simple")

	got = m.SanitizeData(context.Background(), data)
	assert.Equal(t, "secret", got["key1"])
}

func TestRegisterReplacesExisting(t *testing.T) {
	m := newTestMasker()
	m.Register("rule", NewSensitivePaths("key1"))
	m.Register("rule", NewSensitivePaths("key2"))

	got := m.SanitizeData(context.Background(), map[string]any{
		"key1": "left alone",
		"key2": "secret",
	}, "rule")

	assert.Equal(t, "left alone", got["key1"])
	assert.Equal(t, MaskString, got["key2"])
}

func TestResolveNamesSortedUnion(t *testing.T) {
	m := newTestMasker()
	m.RegisterGlobal("zeta", NewSensitivePaths("z"))

	ctx := WithMaskNames(context.Background(), "mid")

	got := m.resolveNames(ctx, []string{"alpha", "mid"})

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, got)
}

func TestDefaultMaskerDelegators(t *testing.T) {
	original := DefaultMasker()
	defer SetDefaultMasker(original)

	SetDefaultMasker(newTestMasker())

	Register("simple", NewSensitivePaths("obj1/key1"))
	defer Unregister("simple")

	ctx := context.Background()

	got := SanitizeData(ctx, map[string]any{
		"obj1": map[string]any{"key1": "secret"},
	}, "simple")
	assert.Equal(t, MaskString, got["obj1"].(map[string]any)["key1"])

	assert.Equal(t, "obj1=show", SanitizeQuerystring(ctx, "obj1=show", "simple"))
	assert.Equal(t, "/p?a=1", SanitizeURL(ctx, "/p?a=1", "simple"))
	assert.Equal(t, 7, SanitizeAny(ctx, 7, "simple"))

	// Setting a nil default is ignored.
	SetDefaultMasker(nil)
	assert.NotNil(t, DefaultMasker())
}

func TestRegisterGlobalDelegator(t *testing.T) {
	original := DefaultMasker()
	defer SetDefaultMasker(original)

	SetDefaultMasker(newTestMasker())

	RegisterGlobal("everywhere", NewSensitivePaths("token"))

	got := SanitizeData(context.Background(), map[string]any{"token": "secret"})

	assert.Equal(t, MaskString, got["token"])
}
