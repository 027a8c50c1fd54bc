// Package config handles YAML config file loading for git-lfs-agent.
package config

import (
	"os"
	"regexp"
)

// envRef matches ${NAME} and ${NAME:-fallback}.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv substitutes environment references in a config document before
// it is parsed:
//
//	${NAME}            value of NAME, or "" when unset
//	${NAME:-fallback}  value of NAME, or fallback when unset or empty
//
// Bare $NAME is left alone so tool arguments such as rclone filters keep
// their dollar signs. An unset reference is not an error; a missing secret
// surfaces when the value is used (an empty notify url, a failing tool).
func ExpandEnv(input string) string {
	return envRef.ReplaceAllStringFunc(input, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if value := os.Getenv(m[1]); value != "" {
			return value
		}
		return m[2]
	})
}
