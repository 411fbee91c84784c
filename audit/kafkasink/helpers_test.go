package kafkasink

import (
	"context"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/session"
)

func newMemoryStore() *session.Memory { return session.NewMemory() }

// emptyCredentials knows no users.
type emptyCredentials struct{}

func newEmptyCredentials() emptyCredentials { return emptyCredentials{} }

func (emptyCredentials) FindByEmail(context.Context, string) (sessiongate.User, error) {
	return sessiongate.User{}, sessiongate.ErrNotFound
}

func (emptyCredentials) FindByID(context.Context, string) (sessiongate.User, error) {
	return sessiongate.User{}, sessiongate.ErrNotFound
}

func (emptyCredentials) Create(context.Context, sessiongate.NewUser) (sessiongate.User, error) {
	return sessiongate.User{}, sessiongate.ErrInternal
}

func (emptyCredentials) DeleteByID(context.Context, string) error {
	return sessiongate.ErrNotFound
}
