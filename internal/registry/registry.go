// Package registry tracks the process-wide participant roster. A single
// Registry is constructed in main and injected into the connection handlers;
// there is deliberately no package-level instance.
package registry

import (
	"errors"
	"sync"

	"github.com/kindlyrobotics/sketchsync/internal/models"
)

var (
	// ErrNotAuthorized means the requestor is not the current admin.
	ErrNotAuthorized = errors.New("registry: only the admin can remove users")
	// ErrNotFound means no participant matched the target username.
	ErrNotFound = errors.New("registry: no such user")
)

// Notifier delivers roster signals back to connected clients. The hub
// implements it; tests substitute a recorder. Implementations must not block.
type Notifier interface {
	NotifyAll(event string, payload interface{})
	NotifyConnection(connectionID, event string, payload interface{})
}

// Registry is the participant roster. The first user to join an empty roster
// becomes the admin; there is no re-election when the admin leaves.
type Registry struct {
	mu       sync.Mutex
	users    []models.Participant
	notifier Notifier
}

func New(n Notifier) *Registry {
	return &Registry{notifier: n}
}

// Join adds a participant and broadcasts the updated roster to everyone.
func (r *Registry) Join(username, connectionID string) models.Participant {
	r.mu.Lock()
	p := models.Participant{
		Username:     username,
		ConnectionID: connectionID,
		IsAdmin:      len(r.users) == 0,
	}
	r.users = append(r.users, p)
	roster := r.rosterLocked()
	r.mu.Unlock()

	r.notifier.NotifyAll(models.EventUpdateUsers, roster)
	return p
}

// Remove kicks targetUsername on behalf of requestorConnectionID. The target
// hears the removed signal before the shrunk roster goes out; a missing
// target is reported to the requestor only, with no broadcast.
func (r *Registry) Remove(requestorConnectionID, targetUsername string) error {
	r.mu.Lock()

	isAdmin := false
	for _, u := range r.users {
		if u.ConnectionID == requestorConnectionID && u.IsAdmin {
			isAdmin = true
			break
		}
	}
	if !isAdmin {
		r.mu.Unlock()
		return ErrNotAuthorized
	}

	idx := -1
	for i, u := range r.users {
		if u.Username == targetUsername {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return ErrNotFound
	}

	target := r.users[idx]
	r.notifier.NotifyConnection(target.ConnectionID, models.EventRemoved, nil)
	r.users = append(r.users[:idx], r.users[idx+1:]...)
	roster := r.rosterLocked()
	r.mu.Unlock()

	r.notifier.NotifyAll(models.EventUpdateUsers, roster)
	return nil
}

// Disconnect drops the participant for a closed connection. Unknown
// connections are a no-op with no broadcast, so it is safe to call from every
// connection teardown path.
func (r *Registry) Disconnect(connectionID string) {
	r.mu.Lock()
	idx := -1
	for i, u := range r.users {
		if u.ConnectionID == connectionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return
	}
	r.users = append(r.users[:idx], r.users[idx+1:]...)
	roster := r.rosterLocked()
	r.mu.Unlock()

	r.notifier.NotifyAll(models.EventUpdateUsers, roster)
}

// Participants returns a copy of the current roster.
func (r *Registry) Participants() []models.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rosterLocked()
}

func (r *Registry) rosterLocked() []models.Participant {
	out := make([]models.Participant, len(r.users))
	copy(out, r.users)
	return out
}
