package dedup

// Store records booking ids already forwarded downstream, per role, so the
// same logical booking is never created or canceled twice.
type Store interface {
	MarkCreated(bookID string) error
	MarkCanceled(bookID string) error
	Created(bookID string) bool
	Canceled(bookID string) bool
	// Forwarded reports whether the booking was forwarded in either role.
	Forwarded(bookID string) bool
	Close() error
}
