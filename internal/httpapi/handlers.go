package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dispatchd/internal/apperrors"
	"dispatchd/internal/model"
	"dispatchd/internal/wire"
)

// handleSubmitGraph is the C2 entry point: parse, validate, decode, graft.
// ValidationError, DependencyCycleError and GraphSubmissionError are the
// only kinds surfaced synchronously here — everything downstream of a
// successful graft is visible only through node status.
func (s *Server) handleSubmitGraph(c *gin.Context) {
	doc, err := wire.Parse(c.Request.Body)
	if err != nil {
		writeError(c, http.StatusBadRequest, "validation", err)
		return
	}

	user := doc.User
	if h := c.GetHeader("X-Dispatch-User"); h != "" {
		user = h
	}

	result, err := s.Loop.Submit(doc, user)
	if err != nil {
		writeError(c, statusForSubmitError(err), "submission", err)
		return
	}

	c.Header("Location", fmt.Sprintf("/nodes/%d", result.RootFolderID))
	c.String(http.StatusCreated, "root=%d tasks=%v commands=%v poolShare=%d",
		result.RootFolderID, result.TaskIDs, result.CommandIDs, result.PoolShareID)
}

func statusForSubmitError(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrCycle), errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrSubmission):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// statusChangeRequest is the body of POST /nodes/{id}/status.
type statusChangeRequest struct {
	Status string `json:"status"`
	Kind   string `json:"kind"` // "folder" or "task"
}

func (s *Server) handleSetStatus(c *gin.Context) {
	var req statusChangeRequest
	if err := decodeStrict(c, &req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", err)
		return
	}

	ref, err := resolveRef(c.Param("id"), req.Kind)
	if err != nil {
		writeError(c, http.StatusBadRequest, "validation", err)
		return
	}
	status, err := parseControlStatus(req.Status)
	if err != nil {
		writeError(c, http.StatusBadRequest, "validation", err)
		return
	}

	if err := s.Loop.SetStatus(c.Request.Context(), ref, status); err != nil {
		writeError(c, statusForNotFound(err), "control", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseControlStatus(s string) (model.Status, error) {
	switch s {
	case "CANCELED":
		return model.StatusCanceled, nil
	case "PAUSED":
		return model.StatusPaused, nil
	case "READY":
		return model.StatusReady, nil
	default:
		return 0, &apperrors.ValidationError{Kind: "control", Msg: "status must be CANCELED, PAUSED, or READY, got " + s}
	}
}

// patchNodeRequest is the body of PATCH /nodes/{id}. At least one of
// DispatchKey/MaxRN is required per call; both may be sent together.
type patchNodeRequest struct {
	Kind        string   `json:"kind"`
	DispatchKey *float64 `json:"dispatchKey"`
	MaxRN       *int     `json:"maxRN"`
}

func (s *Server) handlePatchNode(c *gin.Context) {
	var req patchNodeRequest
	if err := decodeStrict(c, &req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", err)
		return
	}
	ref, err := resolveRef(c.Param("id"), req.Kind)
	if err != nil {
		writeError(c, http.StatusBadRequest, "validation", err)
		return
	}
	if req.DispatchKey == nil && req.MaxRN == nil {
		writeError(c, http.StatusBadRequest, "validation", &apperrors.ValidationError{Kind: "patch", Msg: "dispatchKey or maxRN is required"})
		return
	}

	if req.DispatchKey != nil {
		if err := s.Loop.SetDispatchKey(ref, *req.DispatchKey); err != nil {
			writeError(c, statusForNotFound(err), "control", err)
			return
		}
	}
	if req.MaxRN != nil {
		if err := s.Loop.SetMaxRN(ref, *req.MaxRN); err != nil {
			writeError(c, statusForNotFound(err), "control", err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}

type licenceQuotaRequest struct {
	Capacity int `json:"capacity"`
}

func (s *Server) handleSetLicenceQuota(c *gin.Context) {
	name := c.Param("name")
	token := c.Param("token")
	licenceName := name
	if token != "" {
		licenceName = name + "/" + token
	}

	var req licenceQuotaRequest
	if err := decodeStrict(c, &req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", err)
		return
	}
	if err := s.Loop.SetLicenceQuota(licenceName, req.Capacity); err != nil {
		writeError(c, http.StatusBadRequest, "validation", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// workerCallbackRequest is the body of POST /workers/{id}/callback: either
// a terminal command status report or a bare heartbeat (CommandID == 0).
type workerCallbackRequest struct {
	CommandID int    `json:"commandId"`
	Status    int    `json:"status"`
	Message   string `json:"message"`
}

func (s *Server) handleWorkerCallback(c *gin.Context) {
	rn := c.Param("id")
	var req workerCallbackRequest
	if err := decodeStrict(c, &req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", err)
		return
	}

	if req.CommandID == 0 {
		if err := s.Loop.Heartbeat(rn); err != nil {
			writeError(c, statusForNotFound(err), "worker", err)
			return
		}
		c.Status(http.StatusNoContent)
		return
	}

	status := model.Status(req.Status)
	if status < model.StatusBlocked || status > model.StatusPaused {
		writeError(c, http.StatusBadRequest, "validation", &apperrors.ValidationError{Kind: "callback", Msg: "unknown status integer"})
		return
	}
	if err := s.Loop.WorkerCallback(rn, req.CommandID, status, req.Message); err != nil {
		writeError(c, statusForNotFound(err), "worker", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// resolveRef turns a path {id} plus an explicit kind discriminator into a
// model.NodeRef. Folder and task IDs are allocated from independent
// per-class allocators (internal/model.Tree), so the bare integer alone is
// ambiguous; the kind field closes that gap rather than guessing.
func resolveRef(idParam, kind string) (model.NodeRef, error) {
	id, err := strconv.Atoi(idParam)
	if err != nil {
		return model.NodeRef{}, &apperrors.ValidationError{Kind: "node", Msg: "id must be an integer"}
	}
	switch kind {
	case "", "task":
		return model.NodeRef{Kind: model.KindTaskNode, ID: id}, nil
	case "folder":
		return model.NodeRef{Kind: model.KindFolderNode, ID: id}, nil
	default:
		return model.NodeRef{}, &apperrors.ValidationError{Kind: "node", Msg: "kind must be \"task\" or \"folder\""}
	}
}

func statusForNotFound(err error) int {
	if errors.Is(err, apperrors.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, apperrors.ErrValidation) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
