package operators

import "github.com/nelknet/dbspgo/pkg/zset"

// Filter is stateless (§4.2.5): it drops entries whose predicate is false,
// preserving weights on survivors.
type Filter[K comparable] struct {
	predicate func(K, zset.Weight) bool
}

// NewFilter creates a Filter operator from a predicate.
func NewFilter[K comparable](predicate func(K, zset.Weight) bool) *Filter[K] {
	return &Filter[K]{predicate: predicate}
}

// Step applies the predicate to delta.
func (op *Filter[K]) Step(delta *zset.ZSet[K]) (*zset.ZSet[K], error) {
	return zset.Filter(delta, op.predicate), nil
}

// MapKeys is stateless (§4.2.5): it applies f to every key and recoalesces.
type MapKeys[K comparable, K2 comparable] struct {
	f func(K) K2
}

// NewMapKeys creates a MapKeys operator from a key-mapping function.
func NewMapKeys[K comparable, K2 comparable](f func(K) K2) *MapKeys[K, K2] {
	return &MapKeys[K, K2]{f: f}
}

// Step applies f to delta and recoalesces.
func (op *MapKeys[K, K2]) Step(delta *zset.ZSet[K]) (*zset.ZSet[K2], error) {
	return zset.MapKeys(delta, op.f)
}
