package analyses

// LockCount returns the number of per-analysis locks a memory store is tracking.
func LockCount(s Store) int {
	m := s.(*memoryStore)
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	return len(m.locks)
}
