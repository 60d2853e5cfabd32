package joinrequests

import "github.com/hilthontt/repochat/internal/domain"

type resolveRequest struct {
	Decision string `json:"decision"`
}

type joinRequestsResponse struct {
	Requests []domain.JoinRequest `json:"requests"`
}
