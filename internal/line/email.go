package line

import (
	"regexp"
	"strings"
)

// EmailDomain is the placeholder domain for accounts whose LINE profile
// carries no usable email address.
const EmailDomain = "line.local"

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// DeriveEmail returns the canonical email the auth provider account is keyed
// by: the claimed email lowercased when it is syntactically valid, otherwise a
// deterministic placeholder derived from the LINE user id. Signup and login
// must derive byte-identical values for the same subject.
func DeriveEmail(lineUserID, claimedEmail string) string {
	if claimedEmail != "" && emailPattern.MatchString(claimedEmail) {
		return strings.ToLower(claimedEmail)
	}
	normalized := strings.ToLower(nonAlphanumeric.ReplaceAllString(lineUserID, ""))
	return "line_" + normalized + "@" + EmailDomain
}
