package bus

import (
	"fmt"
	"strings"
)

// Subjects published by the collector. StreamSubjects captures all of them.
const (
	SubjectUpdatesReceived = "pmgmt.updates.received"
	SubjectHostCreated     = "pmgmt.hosts.created"
	SubjectHostKeyRotated  = "pmgmt.hosts.key_rotated"
	SubjectHostDeleted     = "pmgmt.hosts.deleted"

	StreamSubjects = "pmgmt.>"
)

const subjectPrefix = "pmgmt."

// CheckSubject reports whether subject lies in the pmgmt namespace. Filters may
// use the "*" and trailing ">" wildcards; published subjects may not.
func CheckSubject(subject string, filter bool) error {
	if !strings.HasPrefix(subject, subjectPrefix) {
		return fmt.Errorf("subject %q is outside %s", subject, StreamSubjects)
	}
	tokens := strings.Split(subject, ".")
	for i, tok := range tokens {
		switch {
		case tok == "":
			return fmt.Errorf("subject %q has an empty token", subject)
		case strings.ContainsAny(tok, " \t\r\n"):
			return fmt.Errorf("subject %q contains whitespace", subject)
		case tok == "*" || tok == ">":
			if !filter {
				return fmt.Errorf("subject %q contains a wildcard", subject)
			}
			if tok == ">" && i != len(tokens)-1 {
				return fmt.Errorf("subject %q: > must be the last token", subject)
			}
		case strings.ContainsAny(tok, "*>"):
			return fmt.Errorf("subject %q has a malformed token %q", subject, tok)
		}
	}
	return nil
}
