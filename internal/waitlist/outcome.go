package waitlist

import (
	"fmt"
	"strings"
)

// Outcome is the result of a verify command. The two side effects of a
// verification (platform role grant, registry removal) are not transactional,
// so each partial-failure combination is its own value.
type Outcome int

const (
	// OutcomeAlreadyVerified: the member was not on the waitlist; nothing was done.
	OutcomeAlreadyVerified Outcome = iota + 1
	// OutcomeGrantFailed: the platform rejected the role grant; the member stays listed.
	OutcomeGrantFailed
	// OutcomeVerified: role granted and member removed from the waitlist.
	OutcomeVerified
	// OutcomeVerifiedButRegistryStale: role granted, but the waitlist could not
	// be updated and will keep listing the member until the next resync.
	OutcomeVerifiedButRegistryStale
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAlreadyVerified:
		return "already_verified"
	case OutcomeGrantFailed:
		return "grant_failed"
	case OutcomeVerified:
		return "verified"
	case OutcomeVerifiedButRegistryStale:
		return "verified_registry_stale"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Message renders the user-facing reply for the outcome.
func (o Outcome) Message(target MemberID) string {
	mention := target.Mention()
	switch o {
	case OutcomeAlreadyVerified:
		return mention + " is already verified!"
	case OutcomeGrantFailed:
		return "Failed to add Verified Role to " + mention + "..."
	case OutcomeVerified:
		return mention + " now has access to the server!"
	case OutcomeVerifiedButRegistryStale:
		return mention + " was given the Verified Role, but couldn't be removed from the waitlist. " +
			"They may still show up there until the next resync."
	default:
		return "Verifying " + mention + " finished with an unrecognised result (" + o.String() + ")."
	}
}

// PendingList is a rendered snapshot of the waitlist.
type PendingList struct {
	Members []PendingMember
}

// Message renders the list as the reply to a "show waitlist" command.
func (l PendingList) Message() string {
	var b strings.Builder
	b.WriteString("Users on Waitlist")
	if len(l.Members) == 0 {
		b.WriteString("\nNone!")
		return b.String()
	}
	for _, m := range l.Members {
		b.WriteString("\n- ")
		b.WriteString(m.ID.Mention())
	}
	return b.String()
}
