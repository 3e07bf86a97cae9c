package store

import (
	"context"
	"errors"
	"strings"

	"github.com/kofuk/premises-launcher/internal/host"
)

var ErrEmptyUsername = errors.New("username must not be empty")

type Auth struct {
	h host.Host
}

func NewAuth(h host.Host) *Auth {
	return &Auth{h: h}
}

// LoginOffline logs in without a Microsoft account. The resulting config
// arrives through launcher_config_update.
func (a *Auth) LoginOffline(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrEmptyUsername
	}

	return a.h.Invoke(ctx, host.MethodLoginOffline, host.LoginOfflineInput{Username: username}, nil)
}

func (a *Auth) LoginMicrosoft(ctx context.Context) error {
	return a.h.Invoke(ctx, host.MethodLoginMsa, nil, nil)
}
