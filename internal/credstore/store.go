package credstore

import "priceoptool/pkg/domain"

// StorageKey is the fixed key the session blob lives under, matching the
// browser front end's localStorage slot.
const StorageKey = "user"

// Store persists the session user blob between runs. The durable copy
// must mirror the in-memory session after every mutation.
type Store interface {
	Save(user domain.User) error
	Load() (domain.User, bool, error)
	Clear() error
}
