package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/hilthontt/repochat/internal/infrastructure/validate"
)

const (
	localNameSuffixLength = 6
	localNameSuffixChars  = "abcdefghjkmnpqrstuvwxyz23456789"
	maxSlugLength         = 32
)

var (
	charsetLen = big.NewInt(int64(len(localNameSuffixChars)))
	slugStrip  = regexp.MustCompile(`[^a-z0-9]+`)
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

var (
	validateRoomName = validate.Field("name",
		validate.Required(),
		validate.MaxLength(64),
		validate.ValidUTF8(),
	)
	validateDescription = validate.Field("description",
		validate.MaxLength(512),
		validate.ValidUTF8(),
	)
	validateVisibility = validate.Field("visibility",
		validate.OneOf(string(VisibilityPublic), string(VisibilityPrivate)),
	)
	validateLocalName = validate.Field("room",
		validate.Required(),
		validate.Matches(`^[a-z0-9][a-z0-9-]*$`, "invalid room name"),
	)
)

// RoomInfo is the metadata document of a room (chats/<local>/info.json).
type RoomInfo struct {
	ID          string     `json:"id"`
	LocalName   string     `json:"local_name"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Visibility  Visibility `json:"visibility"`
	Owner       Identity   `json:"owner"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Deleted     bool       `json:"deleted,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Room is the assembled view of a room: metadata plus its member list.
type Room struct {
	RoomInfo
	Members MemberList `json:"members"`
}

// RoomPatch carries optional settings changes.
type RoomPatch struct {
	Name        *string     `json:"name,omitempty"`
	Description *string     `json:"description,omitempty"`
	Visibility  *Visibility `json:"visibility,omitempty"`
}

// FormatRoomID joins an owner login and local name into "owner@name".
func FormatRoomID(owner, localName string) string {
	return owner + "@" + localName
}

// ParseRoomID splits "owner@name".
func ParseRoomID(roomID string) (owner, localName string, err error) {
	owner, localName, ok := strings.Cut(strings.TrimSpace(roomID), "@")
	if !ok {
		return "", "", fmt.Errorf("%w: room id must look like owner@name", ErrInvalidInput)
	}
	if owner, err = ValidateLogin(owner); err != nil {
		return "", "", err
	}
	if err := validateLocalName(localName); err != nil {
		return "", "", invalid(err)
	}
	return owner, localName, nil
}

func NewRoom(owner Identity, name, description string, visibility Visibility) (*Room, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if visibility == "" {
		visibility = VisibilityPublic
	}

	for _, check := range []struct {
		v     validate.Validator
		value string
	}{
		{validateRoomName, name},
		{validateDescription, description},
		{validateVisibility, string(visibility)},
	} {
		if err := check.v(check.value); err != nil {
			return nil, invalid(err)
		}
	}

	localName, err := generateLocalName(name)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	room := &Room{
		RoomInfo: RoomInfo{
			ID:          FormatRoomID(owner.Login, localName),
			LocalName:   localName,
			Name:        name,
			Description: description,
			Visibility:  visibility,
			Owner:       owner,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	room.Members, _ = room.Members.Add(owner.AsMember(RoleOwner))

	return room, nil
}

// Apply validates and applies patch to the metadata.
func (r *RoomInfo) Apply(patch RoomPatch) error {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if err := validateRoomName(name); err != nil {
			return invalid(err)
		}
		r.Name = name
	}
	if patch.Description != nil {
		description := strings.TrimSpace(*patch.Description)
		if err := validateDescription(description); err != nil {
			return invalid(err)
		}
		r.Description = description
	}
	if patch.Visibility != nil {
		if err := validateVisibility(string(*patch.Visibility)); err != nil {
			return invalid(err)
		}
		r.Visibility = *patch.Visibility
	}
	r.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *RoomInfo) IsOwner(login string) bool {
	return r.Owner.Login == NormalizeLogin(login)
}

func (r *RoomInfo) IsPublic() bool {
	return r.Visibility == VisibilityPublic
}

// MarkDeleted logically deletes the room; its history stays in place.
func (r *RoomInfo) MarkDeleted() {
	now := time.Now().UTC()
	r.Deleted = true
	r.DeletedAt = &now
	r.UpdatedAt = now
}

// CanManage reports whether login may change settings or membership.
func (r *Room) CanManage(login string) bool {
	if r.IsOwner(login) {
		return true
	}
	m, ok := r.Members.Find(login)
	return ok && m.CanManage()
}

func slugify(name string) string {
	slug := slugStrip.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		slug = "room"
	}
	return slug
}

func generateLocalName(name string) (string, error) {
	var sb strings.Builder
	slug := slugify(name)
	sb.Grow(len(slug) + 1 + localNameSuffixLength)
	sb.WriteString(slug)
	sb.WriteByte('-')

	for i := 0; i < localNameSuffixLength; i++ {
		n, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", err
		}
		sb.WriteByte(localNameSuffixChars[n.Int64()])
	}

	return sb.String(), nil
}
