package rooms

import "github.com/hilthontt/repochat/internal/domain"

type joinRoomRequest struct {
	Note string `json:"note"`
}

type roomsResponse struct {
	Rooms []domain.RoomInfo `json:"rooms"`
}

type membersResponse struct {
	Members domain.MemberList `json:"members"`
}
