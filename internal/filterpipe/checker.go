// Package filterpipe implements the filter pipeline of spec §4.3: an
// errgroup-based worker pool that runs every input record through an
// ordered checker chain and dispatches it to pass/fail/all destinations.
package filterpipe

import "github.com/silkflow/silkflow/internal/rwrec"

// Verdict is the result a Checker returns for one record.
type Verdict int

const (
	// Pass continues evaluating the rest of the chain.
	Pass Verdict = iota
	// PassNow short-circuits the chain as Pass.
	PassNow
	// Fail short-circuits the chain as Fail.
	Fail
	// Ignore drops the record without counting it as pass or fail.
	Ignore
)

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "Pass"
	case PassNow:
		return "PassNow"
	case Fail:
		return "Fail"
	case Ignore:
		return "Ignore"
	default:
		return "Unknown"
	}
}

// Checker is one link of the filter chain: a primary predicate, a
// tuple-file membership test, a Lua/script-backed checker, or a
// plugin-supplied checker, per §4.3's chain-construction order. Lua and
// plugin checkers are adapted from the `register_filter`/`FilterFunc`
// hooks of §6.4; this package only ever calls through a Checker value, it
// never itself loads a plugin or a script interpreter.
type Checker func(*rwrec.Record) Verdict

// Chain is an ordered sequence of Checkers, evaluated left to right.
type Chain []Checker

// Evaluate runs rec through the chain per §4.3: Pass continues, PassNow
// short-circuits to Pass, Fail short-circuits to Fail, Ignore drops the
// record immediately. A chain that runs to completion without a
// short-circuit passes.
func (c Chain) Evaluate(rec *rwrec.Record) Verdict {
	for _, check := range c {
		switch v := check(rec); v {
		case Pass:
			continue
		case PassNow:
			return Pass
		case Fail:
			return Fail
		case Ignore:
			return Ignore
		default:
			return Fail
		}
	}
	return Pass
}
