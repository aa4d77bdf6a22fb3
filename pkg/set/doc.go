// Package set implements lazily evaluated collections of vertex names.
//
// Every collection satisfies the [Set] interface regardless of how it is
// backed:
//
//   - [Static] holds a fixed list of names.
//   - [Lazy] wraps an iterator and buffers what it has produced so far.
//   - [Meta] defers to an evaluation function, memoizing its result, and
//     may answer Contains without evaluating.
//   - [IDStatic] holds a span-based id set plus the converter that maps ids
//     to names.
//
// [Union], [Intersection] and [Difference] combine any two sets without
// materializing them. When both operands are [IDStatic] sets built on the
// same id map, they reduce to span arithmetic.
//
// [Hints] carry cheap metadata (known id bounds, iteration order, the id
// map the set belongs to) and propagate conservatively through
// combinators, so a consumer can pick an evaluation strategy without
// forcing evaluation.
package set
