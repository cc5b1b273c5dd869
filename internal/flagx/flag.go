// Package flagx contains helpers for components that parse only their own
// subset of command-line flags out of os.Args.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns the arguments from args that belong to allowedFlags,
// together with their values.
//
// Both "-f value" and "-f=value" forms are recognised. A token following an
// allowed flag is treated as its value unless it starts with "-".
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// LookupString extracts a single string flag known by a long and a short
// name from args. The last occurrence wins; an empty string is returned when
// the flag is absent.
func LookupString(args []string, long, short string) string {
	var value string

	fs := flag.NewFlagSet(long, flag.ContinueOnError)
	fs.StringVar(&value, long, "", "")
	fs.StringVar(&value, short, "", "")
	_ = fs.Parse(FilterArgs(args, []string{"-" + long, "-" + short}))

	return value
}

// ConfigFile returns the JSON config path passed with -c or -config.
func ConfigFile() string {
	return LookupString(os.Args[1:], "config", "c")
}

// EnvFile returns the dotenv path passed with -e or -env.
func EnvFile() string {
	return LookupString(os.Args[1:], "env", "e")
}
