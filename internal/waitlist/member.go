package waitlist

import (
	"strconv"
	"strings"

	dErrors "gatehouse/pkg/domain-errors"
)

// MemberID is the platform's numeric user snowflake. It is opaque to the
// waitlist: only equality and rendering matter.
type MemberID uint64

// ParseMemberID parses a decimal snowflake. Zero is rejected because the
// platform never issues it.
func ParseMemberID(s string) (MemberID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "member id is required")
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, "member id must be a numeric snowflake")
	}
	if v == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "member id must be non-zero")
	}
	return MemberID(v), nil
}

func (id MemberID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Mention renders the id in the platform's mention syntax.
func (id MemberID) Mention() string {
	return "<@" + id.String() + ">"
}

// PendingMember is a member believed to lack verified status.
type PendingMember struct {
	ID          MemberID
	DisplayName string
}

// MemberStatus is a member as reported by the platform, with the
// authoritative verified flag.
type MemberStatus struct {
	ID          MemberID
	DisplayName string
	Verified    bool
}
