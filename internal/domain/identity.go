package domain

import (
	"strings"

	"github.com/hilthontt/repochat/internal/infrastructure/validate"
)

// Identity is the caller as supplied by the session provider. Login names the
// caller's workspace in the blob store.
type Identity struct {
	ID          string `json:"id,omitempty"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
}

var validateLogin = validate.Field("login",
	validate.Required(),
	validate.MaxLength(39),
	validate.NoSpaces(),
	validate.Matches(`^[a-z0-9][a-z0-9_-]*[a-z0-9]$|^[a-z0-9]$`,
		"login can only contain letters, numbers, underscores, and hyphens (cannot start/end with _ or -)"),
)

// NormalizeLogin lowercases and trims a login.
func NormalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

// ValidateLogin normalizes login and checks it is usable as a workspace name.
func ValidateLogin(login string) (string, error) {
	login = NormalizeLogin(login)
	if err := validateLogin(login); err != nil {
		return "", invalid(err)
	}
	return login, nil
}

func NewIdentity(id, login, displayName, avatar string) (Identity, error) {
	normalized, err := ValidateLogin(login)
	if err != nil {
		return Identity{}, err
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = normalized
	}

	return Identity{
		ID:          strings.TrimSpace(id),
		Login:       normalized,
		DisplayName: displayName,
		Avatar:      strings.TrimSpace(avatar),
	}, nil
}

// AsMember projects the identity onto a member record with the given role.
func (i Identity) AsMember(role Role) Member {
	return Member{
		Login:       i.Login,
		DisplayName: i.DisplayName,
		Avatar:      i.Avatar,
		Role:        role,
	}
}
