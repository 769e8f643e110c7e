package task

import (
	"regexp"
	"slices"
	"strings"
)

const maxTags = 20

var hashtagRe = regexp.MustCompile(`#([a-zA-Z0-9_]{1,32})`)

// ExtractTags returns the distinct lowercased #hashtags of s in order of
// first appearance, at most maxTags of them.
func ExtractTags(s string) []string {
	out := []string{}
	for _, m := range hashtagRe.FindAllStringSubmatch(s, -1) {
		tag := strings.ToLower(m[1])
		if slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
		if len(out) == maxTags {
			break
		}
	}
	return out
}
