package filter

// Context selects which scope a call to Evaluate checks against (spec.md
// §4.5 "Evaluation order").
type Context int

const (
	TransferContext Context = iota
	DeletionContext
)

// Program is an ordered list of compiled rules plus the per-directory
// merge-file stack maintained by DirectoryFilterGuard as a tree walk
// descends and returns.
type Program struct {
	base []Rule // rules present before any dir-merge segment, never popped

	// stack holds one frame per directory currently being walked; frame 0
	// is the transfer root. Each frame is the set of inheritable segments
	// active at that depth (cumulative) plus that directory's own
	// ephemeral segment.
	stack []frame

	// visited tracks canonical paths of merge files already loaded along
	// the current walk, so a merge file that (directly or transitively)
	// includes itself is a silent no-op on the second visit rather than an
	// infinite loop, per spec.md §9 "Cyclic filter merge files".
	visited map[string]bool
}

type frame struct {
	inherited [][]Rule // one segment per inheritable dir-merge file, shallowest first
	ephemeral []Rule   // this directory's own ephemeral dir-merge segment, if any
	excluded  bool     // an exclude-if-present marker fired for this directory
}

func NewProgram(rules []Rule) *Program {
	p := &Program{base: rules, visited: make(map[string]bool)}
	p.stack = []frame{{}}
	return p
}

// Evaluate walks rules from innermost (most recently pushed dir-merge
// segment) to outermost, then the base list, returning the sign of the
// first rule whose Matcher matches and whose Scope includes ctx. Within a
// segment (and within the base list) rules are checked in declaration
// order: the first matching rule wins. No match means "include" (rsync's
// default when no rule fires).
func (p *Program) Evaluate(name string, isDir bool, ctx Context) Sign {
	top := p.stack[len(p.stack)-1]
	if top.excluded {
		return Exclude
	}

	for i := range top.ephemeral {
		if sign, ok := p.tryMatch(&top.ephemeral[i], name, isDir, ctx); ok {
			return sign
		}
	}
	for s := len(top.inherited) - 1; s >= 0; s-- {
		seg := top.inherited[s]
		for i := range seg {
			if sign, ok := p.tryMatch(&seg[i], name, isDir, ctx); ok {
				return sign
			}
		}
	}
	for i := range p.base {
		if sign, ok := p.tryMatch(&p.base[i], name, isDir, ctx); ok {
			return sign
		}
	}
	return Include
}

func (p *Program) tryMatch(r *Rule, name string, isDir bool, ctx Context) (Sign, bool) {
	if r.isDirMerge() {
		return Include, false
	}
	switch ctx {
	case DeletionContext:
		if !r.Scope.Deletion {
			return Include, false
		}
	default:
		if !r.Scope.Transfer {
			return Include, false
		}
	}
	if r.Scope.DirOnly && !isDir {
		return Include, false
	}
	if r.Matcher.Match(name, isDir) {
		return r.Sign, true
	}
	return Include, false
}
