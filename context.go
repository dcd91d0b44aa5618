package edgelog

import (
	"context"
	"sort"
)

// maskScope is one frame of active rule-set names. Frames form a chain
// through parent: deriving a context pushes a frame, and letting the derived
// context go out of scope pops it on every exit path, panics included. Each
// logical operation carries its own chain; nothing is shared between
// goroutines unless their contexts are.
type maskScope struct {
	names  map[string]struct{}
	parent *maskScope
}

type maskScopeContextKey struct{}

// WithMaskNames returns a context with the given rule-set names active in
// addition to any names already active on ctx. Use the returned context for
// the duration of one logical operation:
//
//	ctx = edgelog.WithMaskNames(ctx, "CreditCards")
//	masked := masker.SanitizeData(ctx, payload)
func WithMaskNames(ctx context.Context, names ...string) context.Context {
	parent, _ := ctx.Value(maskScopeContextKey{}).(*maskScope)

	set := make(map[string]struct{}, len(names))

	for _, n := range names {
		set[n] = struct{}{}
	}

	return context.WithValue(ctx, maskScopeContextKey{}, &maskScope{
		names:  set,
		parent: parent,
	})
}

// ActiveMaskNames returns the sorted union of the rule-set names across every
// scope active on ctx.
func ActiveMaskNames(ctx context.Context) []string {
	set := activeMaskNameSet(ctx)
	out := make([]string, 0, len(set))

	for n := range set {
		out = append(out, n)
	}

	sort.Strings(out)

	return out
}

func activeMaskNameSet(ctx context.Context) map[string]struct{} {
	set := make(map[string]struct{})

	if ctx == nil {
		return set
	}

	scope, _ := ctx.Value(maskScopeContextKey{}).(*maskScope)

	for ; scope != nil; scope = scope.parent {
		for n := range scope.names {
			set[n] = struct{}{}
		}
	}

	return set
}
