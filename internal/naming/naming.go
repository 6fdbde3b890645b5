// Package naming contains pure functions for deriving resource names from a
// stage name. No I/O; every function is deterministic.
package naming

import (
	"fmt"
	"strings"
	"unicode"
)

// TitleCase derives the display form of a stage name: each
// whitespace-delimited token gets its first rune uppercased and the remainder
// lowercased. Internal punctuation is preserved ("user-acc test" becomes
// "User-acc Test"). The result is stable and idempotent; it is used only for
// human-readable identifiers, never as a semantic key.
func TitleCase(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		runes := []rune(strings.ToLower(f))
		runes[0] = unicode.ToUpper(runes[0])
		fields[i] = string(runes)
	}
	return strings.Join(fields, " ")
}

// Resource builds the physical name for a resource of the given kind, e.g.
// Resource("staging", "cluster") -> "staging-cluster".
func Resource(stage, kind string) string {
	return fmt.Sprintf("%s-%s", stage, kind)
}

// Display builds the human-readable Name-tag value for a resource of the
// given kind, e.g. Display("staging", "Cluster") -> "Staging Cluster".
func Display(stage, kind string) string {
	return fmt.Sprintf("%s %s", TitleCase(stage), kind)
}

// LogGroup builds the CloudWatch log group name for an application at a
// stage, e.g. LogGroup("staging", "web-server") -> "/ecs/staging-web-server".
func LogGroup(stage, app string) string {
	return fmt.Sprintf("/ecs/%s-%s", stage, app)
}
