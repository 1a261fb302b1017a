package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bobmcallan/toolsmith/internal/client"
	"github.com/bobmcallan/toolsmith/internal/common"
	"github.com/bobmcallan/toolsmith/internal/interfaces"
	"github.com/bobmcallan/toolsmith/internal/models"
)

// OperationsHandler serves the operation registry and execution over JSON.
type OperationsHandler struct {
	svc    interfaces.ToolService
	logger *common.Logger
}

// NewOperationsHandler creates a new operations handler.
func NewOperationsHandler(svc interfaces.ToolService, logger *common.Logger) *OperationsHandler {
	return &OperationsHandler{svc: svc, logger: logger}
}

// operationList is the body of GET /api/operations.
type operationList struct {
	Revision   int64                        `json:"revision"`
	Count      int                          `json:"count"`
	Operations []models.OperationDescriptor `json:"operations"`
}

// refreshResponse is the body of POST /api/refresh.
type refreshResponse struct {
	Diff   models.RegistryDiff   `json:"diff"`
	Status models.RegistryStatus `json:"status"`
}

var knownKinds = map[models.OperationKind]bool{
	models.OpList:      true,
	models.OpGet:       true,
	models.OpCreate:    true,
	models.OpUpdate:    true,
	models.OpDelete:    true,
	models.OpProcedure: true,
}

// HandleList handles GET /api/operations?kind=&target=.
func (h *OperationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	kind := models.OperationKind(r.URL.Query().Get("kind"))
	if kind != "" && !knownKinds[kind] {
		WriteError(w, http.StatusBadRequest, "unknown operation kind "+string(kind))
		return
	}
	ops := h.svc.ListOperations(kind, r.URL.Query().Get("target"))
	WriteJSON(w, http.StatusOK, operationList{
		Revision:   h.svc.Status().Revision,
		Count:      len(ops),
		Operations: ops,
	})
}

// HandleDescribe handles GET /api/operations/{name}.
func (h *OperationsHandler) HandleDescribe(w http.ResponseWriter, r *http.Request, name string) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	desc, err := h.svc.DescribeOperation(name)
	if err != nil {
		WriteModelError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, desc)
}

// HandleExecute handles POST /api/operations/{name}/execute. Every envelope,
// failed or not, is returned with status 200.
func (h *OperationsHandler) HandleExecute(w http.ResponseWriter, r *http.Request, name string) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	args, err := decodeArgs(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		WriteError(w, http.StatusBadRequest, "arguments must be a JSON object: "+err.Error())
		return
	}
	ctx := client.WithCredentials(r.Context(), r.Header.Get("Authorization"))
	WriteJSON(w, http.StatusOK, h.svc.Execute(ctx, name, args))
}

// HandleRefresh handles POST /api/refresh.
func (h *OperationsHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	diff, err := h.svc.Refresh(r.Context())
	if err != nil {
		h.logger.Warn().Str("error", err.Error()).Msg("refresh requested over HTTP failed")
		WriteModelError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, refreshResponse{Diff: diff, Status: h.svc.Status()})
}

// HandleStatus handles GET /api/status.
func (h *OperationsHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, h.svc.Status())
}

// ServeItem routes /api/operations/{name} and /api/operations/{name}/execute.
func (h *OperationsHandler) ServeItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/operations/"), "/")
	name, action, _ := strings.Cut(rest, "/")
	switch {
	case name == "":
		h.HandleList(w, r)
	case action == "":
		h.HandleDescribe(w, r, name)
	case action == "execute":
		h.HandleExecute(w, r, name)
	default:
		WriteError(w, http.StatusNotFound, "unknown operation action "+action)
	}
}

// decodeArgs reads a JSON object. An empty body is an empty argument set.
func decodeArgs(body io.Reader) (map[string]interface{}, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}
