package domain

import "context"

// EventPublisher delivers domain events. Publication is fire-and-forget from
// the services' point of view, but a returned error is still propagated to
// the caller.
type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}

// IDGenerator hands out new aggregate ids. Ids must be positive and should
// order by creation time.
type IDGenerator interface {
	NextID() (int64, error)
}

// PasswordHasher is the encryption collaborator. The engine never hashes
// passwords itself.
type PasswordHasher interface {
	Hash(username, password string) (hash, saltHex string, err error)
	Verify(password, hash, saltHex string) bool
}
