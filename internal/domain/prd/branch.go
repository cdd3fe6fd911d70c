package prd

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode"
)

// maxBranchLen bounds the generated branch name, suffix included.
const maxBranchLen = 60

// branchPrefix namespaces branches created by this system.
const branchPrefix = "runforge/"

var lastStamp atomic.Int64

// GenerateBranchName derives a branch name from a PRD title: lower-kebab-case,
// truncated, suffixed with a base-36 timestamp so two calls with the same
// title never collide.
func GenerateBranchName(title string) string {
	slug := kebab(title)
	suffix := strconv.FormatInt(stamp(), 36)

	budget := maxBranchLen - len(branchPrefix) - len(suffix) - 1
	if len(slug) > budget {
		slug = strings.TrimRight(slug[:budget], "-")
	}
	if slug == "" {
		slug = "prd"
	}

	return branchPrefix + slug + "-" + suffix
}

// stamp returns a strictly increasing nanosecond timestamp. Calls landing in
// the same nanosecond are bumped forward by one.
func stamp() int64 {
	for {
		now := time.Now().UnixNano()
		last := lastStamp.Load()
		if now <= last {
			now = last + 1
		}
		if lastStamp.CompareAndSwap(last, now) {
			return now
		}
	}
}

// kebab lowercases the input and collapses every non-alphanumeric sequence
// into a single hyphen.
func kebab(s string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
