// Package filter implements rsync's include/exclude rule engine (spec.md
// §4.5): rule compilation, per-directory merge files, and the scoped
// DirectoryFilterGuard that pushes/pops merge segments as a tree walk
// enters and leaves directories.
//
// Rule vocabulary (dir-merge, -f/--filter, --exclude, --include) is
// grounded on the flag table in the teacher's internal/rsyncopts, which
// parses but never evaluates these options; evaluation is new.
package filter

// Sign is the polarity of a rule.
type Sign bool

const (
	Include Sign = true
	Exclude Sign = false
)

// Scope controls which evaluation passes a rule participates in (spec.md
// §4.5 "A rule matches either on transfer... or on deletion... or both").
type Scope struct {
	Transfer  bool
	Deletion  bool
	Perishable bool // carried on the rule; Evaluate does not consult it
	DirOnly   bool
}

// Rule is one compiled filter rule.
type Rule struct {
	Sign    Sign
	Scope   Scope
	Matcher Matcher

	// DirMerge, when non-empty, names a per-directory merge file; Sign and
	// Scope describe the default for rules loaded from it, and Inherit
	// controls whether the segment it produces is inheritable or ephemeral.
	DirMerge string
	Inherit  bool
	// ExcludeMarkers lists filenames whose presence in a directory excludes
	// that directory entirely (spec.md "Exclude-if-present markers").
	ExcludeMarkers []string
}

func (r *Rule) isDirMerge() bool { return r.DirMerge != "" }
