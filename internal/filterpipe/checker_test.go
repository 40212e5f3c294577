package filterpipe

import (
	"testing"

	"github.com/silkflow/silkflow/internal/rwrec"
)

func alwaysPass(*rwrec.Record) Verdict { return Pass }
func alwaysFail(*rwrec.Record) Verdict { return Fail }
func alwaysIgnore(*rwrec.Record) Verdict { return Ignore }
func alwaysPassNow(*rwrec.Record) Verdict { return PassNow }

func TestChainEmptyPasses(t *testing.T) {
	if got := Chain{}.Evaluate(&rwrec.Record{}); got != Pass {
		t.Fatalf("empty chain = %v, want Pass", got)
	}
}

func TestChainFailShortCircuits(t *testing.T) {
	called := false
	chain := Chain{alwaysFail, func(*rwrec.Record) Verdict { called = true; return Pass }}
	if got := chain.Evaluate(&rwrec.Record{}); got != Fail {
		t.Fatalf("got %v, want Fail", got)
	}
	if called {
		t.Fatal("checker after Fail should not run")
	}
}

func TestChainPassNowShortCircuits(t *testing.T) {
	called := false
	chain := Chain{alwaysPassNow, func(*rwrec.Record) Verdict { called = true; return Fail }}
	if got := chain.Evaluate(&rwrec.Record{}); got != Pass {
		t.Fatalf("got %v, want Pass", got)
	}
	if called {
		t.Fatal("checker after PassNow should not run")
	}
}

func TestChainIgnoreShortCircuits(t *testing.T) {
	chain := Chain{alwaysIgnore, alwaysFail}
	if got := chain.Evaluate(&rwrec.Record{}); got != Ignore {
		t.Fatalf("got %v, want Ignore", got)
	}
}

func TestChainAllPassRunsToCompletion(t *testing.T) {
	chain := Chain{alwaysPass, alwaysPass, alwaysPass}
	if got := chain.Evaluate(&rwrec.Record{}); got != Pass {
		t.Fatalf("got %v, want Pass", got)
	}
}
