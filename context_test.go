package edgelog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

var scopePayload = map[string]any{
	"key1": "value1",
	"key2": "value2",
	"key3": "value3",
}

func scopedMasker() *Masker {
	m := newTestMasker()
	m.Register("Pat1", NewSensitivePaths("key1"))
	m.Register("Pat2", NewSensitivePaths("key2"))
	m.Register("Pat3", NewSensitivePaths("key3"))

	return m
}

func TestMaskScopeSingle(t *testing.T) {
	m := scopedMasker()

	ctx := WithMaskNames(context.Background(), "Pat1")

	sanitized := m.SanitizeData(ctx, scopePayload)

	assert.Equal(t, MaskString, sanitized["key1"])
	assert.Equal(t, "value2", sanitized["key2"])
	assert.Equal(t, "value3", sanitized["key3"])
}

func TestMaskScopeList(t *testing.T) {
	m := scopedMasker()

	ctx := WithMaskNames(context.Background(), "Pat1", "Pat2")

	sanitized := m.SanitizeData(ctx, scopePayload)

	assert.Equal(t, MaskString, sanitized["key1"])
	assert.Equal(t, MaskString, sanitized["key2"])
	assert.Equal(t, "value3", sanitized["key3"])
}

// TestMaskScopeNested verifies that a derived context adds to the active
// names without altering the context it was derived from.
func TestMaskScopeNested(t *testing.T) {
	m := scopedMasker()

	outer := WithMaskNames(context.Background(), "Pat1")

	sanitized := m.SanitizeData(outer, scopePayload)
	assert.Equal(t, MaskString, sanitized["key1"])
	assert.Equal(t, "value2", sanitized["key2"])

	inner := WithMaskNames(outer, "Pat2")

	sanitized = m.SanitizeData(inner, scopePayload)
	assert.Equal(t, MaskString, sanitized["key1"])
	assert.Equal(t, MaskString, sanitized["key2"])
	assert.Equal(t, "value3", sanitized["key3"])

	// Back on the outer context, Pat2 is no longer active.
	sanitized = m.SanitizeData(outer, scopePayload)
	assert.Equal(t, MaskString, sanitized["key1"])
	assert.Equal(t, "value2", sanitized["key2"])
}

func TestActiveMaskNames(t *testing.T) {
	assert.Empty(t, ActiveMaskNames(context.Background()))
	assert.Empty(t, ActiveMaskNames(nil))

	ctx := WithMaskNames(context.Background(), "zeta", "alpha")
	ctx = WithMaskNames(ctx, "mid", "alpha")

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, ActiveMaskNames(ctx))
}
