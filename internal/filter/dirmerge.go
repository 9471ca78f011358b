package filter

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// DirectoryFilterGuard is returned by Program.Enter and MUST be closed
// (typically via defer) when the walker leaves that directory. It pops
// exactly what Enter pushed, even when the caller returns early on error,
// per spec.md §4.5: "The DirectoryFilterGuard is scoped: it MUST pop
// exactly what it pushed even on error paths."
type DirectoryFilterGuard struct {
	p *Program
}

// Close pops this directory's stack frame.
func (g *DirectoryFilterGuard) Close() {
	g.p.stack = g.p.stack[:len(g.p.stack)-1]
}

// Enter descends into directory dirPath (its filesystem path, for reading
// merge files) whose repo-relative name is dirName. It loads any dir-merge
// files named by rules visible at the current depth, checks exclude-if-
// present markers, and pushes a new stack frame. The returned guard must
// be closed on leaving the directory.
func (p *Program) Enter(dirPath, dirName string) (*DirectoryFilterGuard, error) {
	parent := p.stack[len(p.stack)-1]
	next := frame{inherited: append([][]Rule(nil), parent.inherited...)}

	for _, r := range p.mergeRulesInScope(parent) {
		for _, marker := range r.ExcludeMarkers {
			if _, err := os.Stat(filepath.Join(dirPath, marker)); err == nil {
				next.excluded = true
			}
		}
		mergePath := filepath.Join(dirPath, r.DirMerge)
		canonical, err := filepath.Abs(mergePath)
		if err != nil {
			canonical = mergePath
		}
		if p.visited[canonical] {
			// Already loaded along this walk: a cycle, not an error. The
			// second visit is a no-op (spec.md §9).
			continue
		}
		segment, err := loadMergeFile(mergePath, r)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		p.visited[canonical] = true
		if r.Inherit {
			next.inherited = append(next.inherited, segment)
		} else {
			next.ephemeral = append(next.ephemeral, segment...)
		}
	}

	p.stack = append(p.stack, next)
	return &DirectoryFilterGuard{p: p}, nil
}

// mergeRulesInScope returns the dir-merge rules visible from a frame:
// those in the base list plus any inherited segment's own dir-merge rules
// (rsync allows a merge file to itself declare further per-directory merge
// rules).
func (p *Program) mergeRulesInScope(f frame) []Rule {
	var out []Rule
	for _, r := range p.base {
		if r.isDirMerge() {
			out = append(out, r)
		}
	}
	for _, seg := range f.inherited {
		for _, r := range seg {
			if r.isDirMerge() {
				out = append(out, r)
			}
		}
	}
	return out
}

// loadMergeFile parses one per-directory filter file. Each line is a rule
// in the same "+ pattern" / "- pattern" / "include pattern" / "exclude
// pattern" surface syntax as --filter, inheriting dflt's scope unless the
// line overrides sign explicitly.
func loadMergeFile(path string, dflt Rule) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rules []Rule
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		r, err := ParseRule(line)
		if err != nil {
			continue // malformed lines are skipped, matching upstream's leniency
		}
		if !r.isDirMerge() {
			r.Scope = dflt.Scope
		}
		rules = append(rules, r)
	}
	return rules, sc.Err()
}

// ParseRule compiles one filter-rule line in the "+ pattern" / "- pattern"
// / "include PATTERN" / "exclude PATTERN" / "dir-merge NAME" surface
// syntax rsync's -f/--filter option accepts (see the flag table in the
// teacher's internal/rsyncopts, which names this vocabulary without
// evaluating it).
func ParseRule(line string) (Rule, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Rule{}, errEmptyRule
	}

	kind := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(line, kind))

	switch kind {
	case "+", "include":
		return Rule{Sign: Include, Scope: Scope{Transfer: true}, Matcher: CompilePattern(rest)}, nil
	case "-", "exclude":
		return Rule{Sign: Exclude, Scope: Scope{Transfer: true}, Matcher: CompilePattern(rest)}, nil
	case "dir-merge", ".":
		name := rest
		inherit := true
		if strings.HasPrefix(name, "-") || strings.HasPrefix(name, "+") {
			// A leading '-' or '+' on NAME is stripped and otherwise
			// ignored. No modifier (such as ",e") is recognized, so every
			// dir-merge rule parsed here is inheritable.
			name = strings.TrimSpace(name[1:])
		}
		return Rule{DirMerge: name, Inherit: inherit, Scope: Scope{Transfer: true, Deletion: true}}, nil
	default:
		return Rule{}, errUnknownRuleKind
	}
}

var (
	errEmptyRule       = ruleError("filter: empty rule")
	errUnknownRuleKind = ruleError("filter: unrecognized rule kind")
)

type ruleError string

func (e ruleError) Error() string { return string(e) }
