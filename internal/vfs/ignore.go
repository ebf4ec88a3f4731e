package vfs

import (
	"bufio"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnoreFileName is read from the root of every disk mount.
const IgnoreFileName = ".peekvfsignore"

var (
	// Hardcoded directory exclusions (common build artifacts and dependencies)
	HardcodedExclusions = []string{
		"node_modules", // Node.js dependencies
		"vendor",       // Go dependencies
		"dist",         // Build output
		"venv",         // Python virtual environment
		"env",          // Python virtual environment (alternative name)
		"virtualenv",   // Python virtual environment (alternative name)
	}

	hardcodedExclusionsMap = func() map[string]bool {
		m := make(map[string]bool, len(HardcodedExclusions))
		for _, name := range HardcodedExclusions {
			m[name] = true
		}
		return m
	}()
)

// IgnoreRules decides which entries of a mount are hidden from listings.
type IgnoreRules struct {
	patterns []string
}

// NewIgnoreRules validates patterns and drops the invalid ones with a warning.
func NewIgnoreRules(patterns []string) *IgnoreRules {
	const maxWarnings = 3
	rules := &IgnoreRules{}
	invalid := 0
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			invalid++
			if invalid <= maxWarnings {
				log.Printf("Warning: Invalid ignore pattern '%s' (ignored)", p)
			}
			continue
		}
		rules.patterns = append(rules.patterns, p)
	}
	if invalid > maxWarnings {
		log.Printf("Warning: Suppressed %d additional invalid ignore patterns", invalid-maxWarnings)
	}
	return rules
}

// Patterns returns the accepted custom patterns.
func (r *IgnoreRules) Patterns() []string {
	if r == nil {
		return nil
	}
	return r.patterns
}

// Excluded reports whether the entry at rel (slash separated, relative to
// the mount root) is hidden.
func (r *IgnoreRules) Excluded(rel string, isDir bool) bool {
	name := Base(rel)
	if strings.HasPrefix(name, ".") {
		return true
	}
	if isDir && hardcodedExclusionsMap[name] {
		return true
	}
	if r == nil {
		return false
	}
	for _, pattern := range r.patterns {
		if matched, err := doublestar.Match(pattern, rel); err == nil && matched {
			return true
		}
		if matched, err := doublestar.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}

// ReadIgnoreFile parses the ignore file at the root of dir. A missing file
// yields no patterns.
func ReadIgnoreFile(dir string) []string {
	const maxPatternLength = 256

	file, err := os.Open(filepath.Join(dir, IgnoreFileName))
	if err != nil {
		return nil
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if len(line) > maxPatternLength {
			log.Printf("Warning: %s pattern too long (max %d chars, ignored): %s...", IgnoreFileName, maxPatternLength, line[:50])
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		log.Printf("Warning: Error reading %s: %v", IgnoreFileName, err)
		return nil
	}
	return patterns
}
