package cmd

import (
	"fmt"
	"strings"
)

// soleArgs are honored only when they are the only argument. Anywhere else
// they belong to the remote string.
var soleArgs = map[string]bool{
	"-h":        true,
	"--help":    true,
	"-v":        true,
	"--version": true,
}

// HoistArgs moves agent flags ahead of the positional arguments and inserts
// a "--" terminator, so dash-prefixed words in the remote argument are never
// parsed as agent flags. args[0] is the program name. Positional order is
// preserved. A value flag at the end of the list without its value is an
// error.
//
//	agent host:dir --tmpdir /t -P 22  =>  agent --tmpdir /t -- host:dir -P 22
func HoistArgs(args []string) ([]string, error) {
	if len(args) == 0 {
		return args, nil
	}
	if len(args) == 2 && soleArgs[args[1]] {
		return args, nil
	}

	hoisted := []string{args[0]}
	var positional []string
	for i := 1; i < len(args); i++ {
		arg := args[i]
		name, inline := flagName(arg)
		if !hoistedFlags[name] {
			positional = append(positional, arg)
			continue
		}
		if inline {
			hoisted = append(hoisted, arg)
			continue
		}
		if i+1 >= len(args) {
			return nil, fmt.Errorf("flag --%s requires a value", name)
		}
		hoisted = append(hoisted, arg, args[i+1])
		i++
	}

	hoisted = append(hoisted, "--")
	return append(hoisted, positional...), nil
}

// flagName returns the name of a "-name", "--name" or "--name=value"
// argument and whether the value is inline. Non-flags yield "".
func flagName(arg string) (name string, inline bool) {
	if !strings.HasPrefix(arg, "-") || arg == "-" || arg == "--" {
		return "", false
	}
	name = strings.TrimPrefix(strings.TrimPrefix(arg, "-"), "-")
	if before, _, found := strings.Cut(name, "="); found {
		return before, true
	}
	return name, false
}
