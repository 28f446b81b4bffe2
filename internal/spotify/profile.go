package spotify

import (
	"context"
	"time"

	"github.com/dshills/spotvec/internal/auth"
	"github.com/dshills/spotvec/pkg/types"
)

// ProfileTimeout bounds the token validation request.
const ProfileTimeout = 5 * time.Second

// ValidateToken checks the session's token against the current user
// profile endpoint.
func (a *API) ValidateToken(ctx context.Context, session *auth.Session) (*types.Profile, error) {
	var profile *types.Profile
	err := session.Do(ctx, func(ctx context.Context, token string) error {
		ctx, cancel := context.WithTimeout(ctx, ProfileTimeout)
		defer cancel()

		user, err := a.client(token).CurrentUser(ctx)
		if err != nil {
			return translateError("me", err)
		}
		profile = &types.Profile{
			Valid:       true,
			DisplayName: user.DisplayName,
			UserID:      user.ID,
		}
		return nil
	})
	if err != nil {
		return &types.Profile{Valid: false}, err
	}
	return profile, nil
}
