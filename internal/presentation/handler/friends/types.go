package friends

import "github.com/hilthontt/repochat/internal/domain"

type sendRequest struct {
	To   string `json:"to"`
	Note string `json:"note"`
}

type resolveRequest struct {
	Decision string `json:"decision"`
}

type contactsResponse struct {
	Contacts []domain.Contact `json:"contacts"`
}

type friendRequestsResponse struct {
	Requests []domain.FriendRequest `json:"requests"`
}
