// Package flagx lets several packages parse their own subset of the command
// line without tripping over each other's flags.
package flagx

import (
	"flag"
	"io"
	"os"
	"strings"
)

// ConfigEnvVar names the environment variable consulted when no config flag
// is given.
const ConfigEnvVar = "AUTHKEEPER_CONFIG"

// flagName strips leading dashes and any "=value" suffix, so "-c", "--c" and
// "--c=x" all normalize to "c".
func flagName(arg string) string {
	name := strings.TrimLeft(arg, "-")
	if i := strings.IndexByte(name, '='); i >= 0 {
		name = name[:i]
	}
	return name
}

// FilterArgs returns the arguments belonging to the named flags, with their
// values. Names are given without dashes; both -name and --name spellings,
// separated or joined with '=', are recognized. Order is preserved and the
// result is never nil.
func FilterArgs(args []string, names ...string) []string {
	allowed := make(map[string]struct{}, len(names))
	for _, n := range names {
		allowed[strings.TrimLeft(n, "-")] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		if _, ok := allowed[flagName(arg)]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if strings.Contains(arg, "=") {
			continue
		}
		// A separate value follows unless the next token is itself a flag.
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}
	return filtered
}

// NewFlagSet returns a silent ContinueOnError flag set.
func NewFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// ConfigPath extracts the JSON config file path from -c/-config in args,
// falling back to the AUTHKEEPER_CONFIG environment variable.
func ConfigPath(args []string) string {
	var path string

	fs := NewFlagSet("config")
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, "c", "config"))

	if path == "" {
		path = os.Getenv(ConfigEnvVar)
	}
	return path
}

// IsSet reports whether the named flag was given on the parsed command line,
// as opposed to holding its default.
func IsSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
