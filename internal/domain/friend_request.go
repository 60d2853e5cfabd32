package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hilthontt/repochat/internal/infrastructure/validate"
)

var validateNote = validate.Field("note", validate.MaxLength(280), validate.ValidUTF8())

// FriendRequest lives in the recipient's workspace under friend_requests/.
type FriendRequest struct {
	ID         string        `json:"id"`
	From       Identity      `json:"from"`
	To         string        `json:"to"`
	Note       string        `json:"note,omitempty"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
}

func NewFriendRequest(from Identity, to, note string) (*FriendRequest, error) {
	to, err := ValidateLogin(to)
	if err != nil {
		return nil, err
	}
	if to == from.Login {
		return nil, fmt.Errorf("%w: cannot send a friend request to yourself", ErrInvalidInput)
	}
	note = strings.TrimSpace(note)
	if err := validateNote(note); err != nil {
		return nil, invalid(err)
	}

	return &FriendRequest{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Note:      note,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (r *FriendRequest) Resolve(decision RequestStatus) error {
	next, err := r.Status.Transition(decision)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	r.Status = next
	r.ResolvedAt = &now
	return nil
}
