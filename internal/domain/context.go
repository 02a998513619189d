package domain

import (
	"context"
	"sync"
)

type subjectScopeKey struct{}

// subjectSlot is the single-assignment holder for the Subject of one unit
// of work. Goroutines sharing the scope's context share the slot.
type subjectSlot struct {
	mu      sync.Mutex
	subject *Subject
}

// WithSubjectScope returns a child context carrying an empty Subject slot.
// A scope is installed once per unit of work, conventionally per request.
func WithSubjectScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, subjectScopeKey{}, &subjectSlot{})
}

// HasSubjectScope reports whether ctx carries a Subject slot.
func HasSubjectScope(ctx context.Context) bool {
	_, ok := ctx.Value(subjectScopeKey{}).(*subjectSlot)
	return ok
}

func slotFromContext(ctx context.Context) (*subjectSlot, error) {
	slot, ok := ctx.Value(subjectScopeKey{}).(*subjectSlot)
	if !ok {
		return nil, ErrScope("no subject scope in context")
	}
	return slot, nil
}

// SubjectFromContext returns the Subject bound in ctx's scope, if any.
func SubjectFromContext(ctx context.Context) (*Subject, bool) {
	slot, err := slotFromContext(ctx)
	if err != nil {
		return nil, false
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.subject, slot.subject != nil
}

// ClearSubject empties the scope's slot. Clearing a slot that holds no
// Subject is a ScopeError.
func ClearSubject(ctx context.Context) error {
	slot, err := slotFromContext(ctx)
	if err != nil {
		return err
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.subject == nil {
		return ErrScope("subject was never applied to current scope")
	}
	slot.subject = nil
	return nil
}

func bindSubject(ctx context.Context, s *Subject) error {
	slot, err := slotFromContext(ctx)
	if err != nil {
		return err
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.subject != nil {
		return ErrScope("a subject has already been applied to current scope")
	}
	slot.subject = s
	return nil
}

// RunWithSubject binds a Subject built from p for the duration of fn and
// clears it afterwards, including when fn panics. A scope is installed when
// ctx does not carry one.
func RunWithSubject(ctx context.Context, p SubjectParams, fn func(ctx context.Context, s *Subject) error) error {
	if !HasSubjectScope(ctx) {
		ctx = WithSubjectScope(ctx)
	}
	s, err := BuildSubject(ctx, p)
	if err != nil {
		return err
	}
	defer func() { _ = ClearSubject(ctx) }()
	return fn(ctx, s)
}
