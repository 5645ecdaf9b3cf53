package waitlist

import (
	"fmt"

	"gatehouse/pkg/platform/sentinel"
)

// ErrRegistryUnavailable is returned by every registry operation once a
// critical section has failed while holding the lock.
var ErrRegistryUnavailable = fmt.Errorf("waitlist registry: %w", sentinel.ErrUnavailable)

// User-facing messages that are not tied to a verify outcome.
const (
	MessageListUnavailable  = "Couldn't fetch the list of users on the waitlist!"
	MessageCheckUnavailable = "Couldn't check the waitlist, so nobody was verified. Try again later."
	MessagePermissionDenied = "Oops! Looks like you don't have the correct permissions for this command!"
)
