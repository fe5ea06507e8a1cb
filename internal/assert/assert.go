// Package assert provides a single panic-on-violation helper used to encode
// invariants that must never be false in correct code, distinct from
// ordinary error returns.
package assert

// Assert panics with msg if cond is false.
func Assert(cond bool, msg string) {
	if !cond {
		panic(msg)
	}
}
