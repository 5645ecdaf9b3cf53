package waitlist

// PoisonRegistry simulates a critical section failing while holding the lock.
func PoisonRegistry(r *Registry) error {
	return r.locked(func() {
		panic("simulated failure while holding the waitlist lock")
	})
}
