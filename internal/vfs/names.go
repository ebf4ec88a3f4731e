package vfs

import "strings"

// DisplayName turns a listing name into its label: an ordering prefix such as
// "01_" is dropped along with a markdown extension, so "01_setup.md" reads
// "setup". Everything up to the last underscore counts as prefix.
func DisplayName(name string) string {
	parts := strings.Split(name, "_")
	name = parts[len(parts)-1]
	name = strings.TrimSuffix(name, ".md")
	return strings.TrimSuffix(name, ".MD")
}
