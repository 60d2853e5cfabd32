package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// JoinRequest lives in the room owner's workspace under join_requests/.
type JoinRequest struct {
	ID         string        `json:"id"`
	From       Identity      `json:"from"`
	Room       string        `json:"room"`
	Note       string        `json:"note,omitempty"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
}

func NewJoinRequest(from Identity, roomID, note string) (*JoinRequest, error) {
	note = strings.TrimSpace(note)
	if err := validateNote(note); err != nil {
		return nil, invalid(err)
	}

	return &JoinRequest{
		ID:        uuid.NewString(),
		From:      from,
		Room:      roomID,
		Note:      note,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (r *JoinRequest) Resolve(decision RequestStatus) error {
	next, err := r.Status.Transition(decision)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	r.Status = next
	r.ResolvedAt = &now
	return nil
}
