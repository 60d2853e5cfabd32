package workspace

import (
	"context"
	"net/http"

	"github.com/hilthontt/repochat/internal/infrastructure/json"
	"github.com/hilthontt/repochat/internal/infrastructure/logging"
	"github.com/hilthontt/repochat/internal/presentation/utils"
)

type Provisioner interface {
	EnsureWorkspace(ctx context.Context, owner string) error
}

type Handler struct {
	provisioner Provisioner
	logger      logging.Logger
}

func NewHandler(provisioner Provisioner, logger logging.Logger) *Handler {
	return &Handler{
		provisioner: provisioner,
		logger:      logger,
	}
}

type workspaceResponse struct {
	Owner  string `json:"owner"`
	Status string `json:"status"`
}

// EnsureHandler provisions the caller's workspace. Repeating it is harmless.
func (h *Handler) EnsureHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := utils.Caller(w, r)
	if !ok {
		return
	}

	if err := h.provisioner.EnsureWorkspace(r.Context(), caller.Login); err != nil {
		utils.WriteServiceError(w, r, h.logger, err)
		return
	}

	json.Write(w, http.StatusOK, workspaceResponse{Owner: caller.Login, Status: "ready"})
}
