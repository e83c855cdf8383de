// Package args extracts multi-tester flags from a raw argument list.
//
// The tester flags are mixed freely with positional arguments, so they are
// stripped here before anything else looks at the list:
//
//	multi-tester --add vendor/lib -v .multi-tester.yml
//
// Value-bearing flags accept both "--flag value" and "--flag=value".
// Boolean flags may appear anywhere.
package args

import (
	"slices"
	"strings"
)

// Flag names recognized by Parse.
const (
	FlagAdd          = "--add"
	FlagVerbose      = "--verbose"
	FlagVerboseShort = "-v"
	FlagQuiet        = "--quiet-install"
	FlagQuietShort   = "-q"
)

var booleanFlags = []string{FlagVerbose, FlagVerboseShort, FlagQuiet, FlagQuietShort}

// Arguments is the outcome of parsing a raw argument list.
type Arguments struct {
	// Positional holds the arguments left once flags and the program name
	// are removed, in their original order.
	Positional []string

	// Adds lists the project ids given with --add, in order.
	Adds []string

	Verbose bool
	Quiet   bool
}

// ConfigPath returns the test-plan path given on the command line.
func (a Arguments) ConfigPath() (string, bool) {
	if len(a.Positional) == 0 {
		return "", false
	}
	return a.Positional[0], true
}

// Filter removes every occurrence of flag from arguments and returns the
// remaining arguments along with the values the flag carried.
//
// "flag value" consumes two tokens and "flag=value" consumes one. A flag in
// last position with nothing after it is dropped without producing a value.
func Filter(arguments []string, flag string) (rest []string, values []string) {
	prefix := flag + "="
	rest = make([]string, 0, len(arguments))
	pending := false

	for _, arg := range arguments {
		switch {
		case pending:
			pending = false
			values = append(values, arg)
		case arg == flag:
			pending = true
		case strings.HasPrefix(arg, prefix):
			values = append(values, arg[len(prefix):])
		default:
			rest = append(rest, arg)
		}
	}

	return rest, values
}

// Parse splits argv (program name first) into positional arguments and
// tester flags.
func Parse(argv []string) Arguments {
	rest, adds := Filter(argv, FlagAdd)

	result := Arguments{
		Adds:    adds,
		Verbose: HasAny(rest, FlagVerbose, FlagVerboseShort),
		Quiet:   HasAny(rest, FlagQuiet, FlagQuietShort),
	}

	remaining := Without(rest, booleanFlags...)
	if len(remaining) > 1 {
		result.Positional = remaining[1:]
	} else {
		result.Positional = []string{}
	}

	return result
}

// HasAny reports whether any of names appears in arguments.
func HasAny(arguments []string, names ...string) bool {
	for _, name := range names {
		if slices.Contains(arguments, name) {
			return true
		}
	}
	return false
}

// Without returns arguments with every token equal to one of names removed.
func Without(arguments []string, names ...string) []string {
	result := make([]string, 0, len(arguments))
	for _, arg := range arguments {
		if !slices.Contains(names, arg) {
			result = append(result, arg)
		}
	}
	return result
}

// Last returns the final value in values, or fallback when there is none.
func Last(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return values[len(values)-1]
}
