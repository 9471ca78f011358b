package filter

import (
	"os"
	"path/filepath"
	"testing"
)

// TestEvaluateDeterministic confirms repeated calls to Evaluate with
// identical arguments always return the identical sign, per spec.md §4.5's
// requirement that filter evaluation be a pure function of (name, isDir,
// ctx, current stack) with no hidden mutation of program state.
func TestEvaluateDeterministic(t *testing.T) {
	prog := NewProgram([]Rule{
		{Sign: Include, Scope: Scope{Transfer: true, Deletion: true}, Matcher: CompilePattern("keep.o")},
		{Sign: Exclude, Scope: Scope{Transfer: true, Deletion: true}, Matcher: CompilePattern("*.o")},
	})

	cases := []struct {
		name  string
		isDir bool
		ctx   Context
		want  Sign
	}{
		{"main.o", false, TransferContext, Exclude},
		{"keep.o", false, TransferContext, Include}, // first matching rule wins
		{"main.go", false, TransferContext, Include},
		{"main.o", false, DeletionContext, Exclude},
	}

	for _, tc := range cases {
		var first Sign
		for i := 0; i < 5; i++ {
			got := prog.Evaluate(tc.name, tc.isDir, tc.ctx)
			if i == 0 {
				first = got
			} else if got != first {
				t.Errorf("Evaluate(%q) not deterministic: call %d returned %v, call 0 returned %v", tc.name, i, got, first)
			}
			if got != tc.want {
				t.Errorf("Evaluate(%q, isDir=%v, ctx=%v) = %v, want %v", tc.name, tc.isDir, tc.ctx, got, tc.want)
			}
		}
	}
}

// TestEvaluateInnermostWins confirms a dir-merge segment's own rules take
// priority over the base list, and that the priority ordering is itself
// stable across repeated calls (spec.md §4.5 "Evaluation order": innermost
// to outermost).
func TestEvaluateInnermostWins(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".rsync-filter"), []byte("+ special.o\n"), 0o644); err != nil {
		t.Fatalf("writing merge file: %v", err)
	}

	prog := NewProgram([]Rule{
		{Sign: Exclude, Scope: Scope{Transfer: true}, Matcher: CompilePattern("*.o")},
		{DirMerge: ".rsync-filter", Inherit: false, Scope: Scope{Transfer: true, Deletion: true}},
	})

	guard, err := prog.Enter(dir, ".")
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	defer guard.Close()

	for i := 0; i < 3; i++ {
		if got := prog.Evaluate("special.o", false, TransferContext); got != Include {
			t.Errorf("call %d: Evaluate(special.o) = %v, want Include (ephemeral merge rule should win)", i, got)
		}
		if got := prog.Evaluate("other.o", false, TransferContext); got != Exclude {
			t.Errorf("call %d: Evaluate(other.o) = %v, want Exclude (falls through to base rule)", i, got)
		}
	}
}

// TestEnterCloseRestoresParentScope confirms a DirectoryFilterGuard pops
// exactly the segment it pushed: once Close runs, a name that matched only
// because of the child directory's ephemeral merge rule must evaluate
// against the parent's rules again.
func TestEnterCloseRestoresParentScope(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".rsync-filter"), []byte("+ special.o\n"), 0o644); err != nil {
		t.Fatalf("writing merge file: %v", err)
	}

	prog := NewProgram([]Rule{
		{Sign: Exclude, Scope: Scope{Transfer: true}, Matcher: CompilePattern("*.o")},
		{DirMerge: ".rsync-filter", Inherit: false, Scope: Scope{Transfer: true, Deletion: true}},
	})

	guard, err := prog.Enter(dir, ".")
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if got := prog.Evaluate("special.o", false, TransferContext); got != Include {
		t.Fatalf("inside directory: Evaluate(special.o) = %v, want Include", got)
	}
	guard.Close()

	if got := prog.Evaluate("special.o", false, TransferContext); got != Exclude {
		t.Errorf("after Close: Evaluate(special.o) = %v, want Exclude (ephemeral segment should be gone)", got)
	}
}

// TestEnterCycleIsNoop confirms a dir-merge rule whose target file has
// already been loaded along the current walk is a silent no-op on the
// second visit rather than reloading (and, transitively, looping) rules,
// per spec.md §9 "Cyclic filter merge files".
func TestEnterCycleIsNoop(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	// Both directories declare a dir-merge rule pointing at the same
	// (absolute, via symlink-free TempDir) merge file in dir, simulating a
	// cycle: sub's rule resolves to the same canonical path already visited
	// when entering dir.
	mergeFile := filepath.Join(dir, "shared-filter")
	if err := os.WriteFile(mergeFile, []byte("+ keep.o\n"), 0o644); err != nil {
		t.Fatalf("writing merge file: %v", err)
	}

	rules := []Rule{
		{Sign: Exclude, Scope: Scope{Transfer: true}, Matcher: CompilePattern("*.o")},
		{DirMerge: "shared-filter", Inherit: true, Scope: Scope{Transfer: true, Deletion: true}},
	}
	prog := NewProgram(rules)

	g1, err := prog.Enter(dir, ".")
	if err != nil {
		t.Fatalf("Enter(dir): %v", err)
	}
	defer g1.Close()

	if got := prog.Evaluate("keep.o", false, TransferContext); got != Include {
		t.Fatalf("after first Enter: Evaluate(keep.o) = %v, want Include", got)
	}

	// Entering sub with the same base rule set tries to merge the same
	// shared-filter path again (same absolute path since DirMerge is a bare
	// name resolved against each directory... here we force the cycle by
	// reusing dir itself as the path to simulate a directory that revisits
	// an already-loaded merge file).
	g2, err := prog.Enter(dir, "sub")
	if err != nil {
		t.Fatalf("Enter(dir) again: %v", err)
	}
	defer g2.Close()

	// The second Enter must not error or hang, and the inherited segment is
	// not loaded twice: Evaluate results stay identical to the first visit.
	if got := prog.Evaluate("keep.o", false, TransferContext); got != Include {
		t.Errorf("after cyclic Enter: Evaluate(keep.o) = %v, want Include", got)
	}
}
