package store

// ErrNotFound is returned when a message doesn't exist in the store.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	if e.ID == "" {
		return "message not found"
	}

	return "message not found: " + e.ID
}
