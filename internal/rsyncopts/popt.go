package rsyncopts

import (
	"fmt"
	"strconv"
	"strings"
)

// argType mirrors the handful of popt(3) POPT_ARG_* argument kinds this
// package's option tables actually use.
type argType int

const (
	// POPT_ARG_NONE options take no argument. When arg is non-nil, matching
	// the option stores 1 into *arg and parsing continues; when arg is nil,
	// val is returned as the special-case opcode for ParseArguments to
	// switch on.
	POPT_ARG_NONE argType = iota
	// POPT_ARG_STRING options consume the next token (or an attached
	// "--opt=value"/"-ovalue" suffix) as a string.
	POPT_ARG_STRING
	// POPT_ARG_INT options consume the next token as a base-10 integer.
	POPT_ARG_INT
	// POPT_ARG_VAL options take no argument and always store val into *arg.
	POPT_ARG_VAL
	// POPT_BIT_SET options take no argument and OR val into *arg.
	POPT_BIT_SET
)

// poptOption describes one accepted flag, long and/or short name, the kind
// of argument it takes, where to store it, and the opcode to report when
// arg is nil (i.e. when the caller wants to special-case this option
// instead of having it applied automatically).
type poptOption struct {
	longName  string
	shortName string
	argInfo   argType
	arg       any // *int, *string, or nil
	val       int
}

// Context carries the state of one command-line parse: the option table in
// effect, the not-yet-consumed argument tokens, and the non-option
// ("remaining") arguments collected so far.
type Context struct {
	Options       *Options
	RemainingArgs []string

	table   []poptOption
	args    []string
	pending string // unconsumed short-option characters of the current token
	optArg  string
}

// poptGetNextOpt consumes leading tokens from pc.args until it finds an
// option whose table entry has arg == nil (reported back as its val for the
// caller's switch statement) or runs out of tokens (reported as -1).
// Options with arg != nil are applied in place and never returned.
func (pc *Context) poptGetNextOpt() (int, error) {
	for {
		if pc.pending != "" {
			return pc.nextShort()
		}
		if len(pc.args) == 0 {
			return -1, nil
		}
		tok := pc.args[0]
		pc.args = pc.args[1:]

		if tok == "--" {
			pc.RemainingArgs = append(pc.RemainingArgs, pc.args...)
			pc.args = nil
			return -1, nil
		}

		if strings.HasPrefix(tok, "--") {
			body := tok[2:]
			name := body
			attached := ""
			hasAttached := false
			if idx := strings.IndexByte(body, '='); idx >= 0 {
				name = body[:idx]
				attached = body[idx+1:]
				hasAttached = true
			}
			opt, ok := pc.findLong(name)
			if !ok {
				return 0, fmt.Errorf("unknown option %q", "--"+name)
			}
			return pc.apply(opt, attached, hasAttached)
		}

		if strings.HasPrefix(tok, "-") && tok != "-" {
			pc.pending = tok[1:]
			continue
		}

		pc.RemainingArgs = append(pc.RemainingArgs, tok)
	}
}

// nextShort processes a single character out of pc.pending, the bundled
// short options left over from a token like "-av".
func (pc *Context) nextShort() (int, error) {
	ch := pc.pending[:1]
	rest := pc.pending[1:]
	opt, ok := pc.findShort(ch)
	if !ok {
		return 0, fmt.Errorf("unknown option %q", "-"+ch)
	}

	switch opt.argInfo {
	case POPT_ARG_STRING, POPT_ARG_INT:
		pc.pending = ""
		if rest != "" {
			return pc.apply(opt, rest, true)
		}
		return pc.apply(opt, "", false)
	default:
		pc.pending = rest
		return pc.apply(opt, "", false)
	}
}

// apply stores or reports the matched option per its argInfo, recursing
// into poptGetNextOpt when the option was fully handled in place (i.e.
// there is no opcode to report back to the caller).
func (pc *Context) apply(opt poptOption, attached string, hasAttached bool) (int, error) {
	switch opt.argInfo {
	case POPT_ARG_NONE:
		if opt.arg != nil {
			*(opt.arg.(*int)) = 1
			return pc.poptGetNextOpt()
		}
		return opt.val, nil

	case POPT_ARG_VAL:
		*(opt.arg.(*int)) = opt.val
		return pc.poptGetNextOpt()

	case POPT_BIT_SET:
		*(opt.arg.(*int)) |= opt.val
		return pc.poptGetNextOpt()

	case POPT_ARG_STRING:
		value, err := pc.takeValue(opt, attached, hasAttached)
		if err != nil {
			return 0, err
		}
		if opt.arg != nil {
			*(opt.arg.(*string)) = value
			return pc.poptGetNextOpt()
		}
		pc.optArg = value
		return opt.val, nil

	case POPT_ARG_INT:
		value, err := pc.takeValue(opt, attached, hasAttached)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("option %q requires a numeric argument: %v", pc.name(opt), err)
		}
		if opt.arg != nil {
			*(opt.arg.(*int)) = n
			return pc.poptGetNextOpt()
		}
		pc.optArg = value
		return opt.val, nil

	default:
		return 0, fmt.Errorf("unhandled popt argInfo %v for %q", opt.argInfo, pc.name(opt))
	}
}

func (pc *Context) takeValue(opt poptOption, attached string, hasAttached bool) (string, error) {
	if hasAttached {
		return attached, nil
	}
	if len(pc.args) == 0 {
		return "", fmt.Errorf("option %q requires an argument", pc.name(opt))
	}
	v := pc.args[0]
	pc.args = pc.args[1:]
	return v, nil
}

func (pc *Context) name(opt poptOption) string {
	if opt.longName != "" {
		return "--" + opt.longName
	}
	return "-" + opt.shortName
}

func (pc *Context) findLong(name string) (poptOption, bool) {
	for _, opt := range pc.table {
		if opt.longName == name {
			return opt, true
		}
	}
	return poptOption{}, false
}

func (pc *Context) findShort(ch string) (poptOption, bool) {
	for _, opt := range pc.table {
		if opt.shortName == ch {
			return opt, true
		}
	}
	return poptOption{}, false
}

// poptGetOptArg returns the string value consumed by the most recently
// reported POPT_ARG_STRING or POPT_ARG_INT option whose arg was nil.
func (pc *Context) poptGetOptArg() string {
	return pc.optArg
}
