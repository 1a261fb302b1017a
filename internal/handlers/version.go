package handlers

import (
	"net/http"

	"github.com/bobmcallan/toolsmith/internal/common"
	"github.com/bobmcallan/toolsmith/internal/interfaces"
)

// VersionHandler reports build information and the active registry revision.
type VersionHandler struct {
	svc    interfaces.ToolService
	logger *common.Logger
}

type versionResponse struct {
	Version   string `json:"version"`
	Build     string `json:"build"`
	GitCommit string `json:"git_commit"`
	Revision  int64  `json:"revision"`
	Provider  string `json:"provider,omitempty"`
}

// NewVersionHandler creates a new version handler. svc may be nil.
func NewVersionHandler(svc interfaces.ToolService, logger *common.Logger) *VersionHandler {
	return &VersionHandler{svc: svc, logger: logger}
}

// ServeHTTP handles GET /api/version.
func (h *VersionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	resp := versionResponse{
		Version:   common.GetVersion(),
		Build:     common.GetBuild(),
		GitCommit: common.GetGitCommit(),
	}
	if h.svc != nil {
		st := h.svc.Status()
		resp.Revision = st.Revision
		resp.Provider = st.Provider
	}
	WriteJSON(w, http.StatusOK, resp)
}
