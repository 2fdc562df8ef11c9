// Package flagx lets a component parse its own flags out of a command line
// shared with other components.
package flagx

import (
	"flag"
	"strings"
)

// FilterArgs returns the tokens of args that belong to the named flags.
// Names are given without dashes and match both -name and --name, in the
// separate ("-d dsn") and inline ("-d=dsn") forms. A separate value is taken
// only when the next token does not start with a dash.
func FilterArgs(args []string, names ...string) []string {
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}

	out := []string{}
	for i := 0; i < len(args); i++ {
		name, inline, ok := flagName(args[i])
		if !ok || !known[name] {
			continue
		}
		out = append(out, args[i])
		if inline {
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			i++
			out = append(out, args[i])
		}
	}
	return out
}

// flagName reports the bare name of a flag token and whether it carries its
// value inline.
func flagName(tok string) (name string, inline bool, ok bool) {
	if !strings.HasPrefix(tok, "-") {
		return "", false, false
	}
	name = strings.TrimPrefix(strings.TrimPrefix(tok, "-"), "-")
	name, _, inline = strings.Cut(name, "=")
	return name, inline, name != ""
}

// ConfigPath returns the value of the last -c or -config flag in args, or ""
// if there is none.
func ConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, "c", "config"))

	return path
}
