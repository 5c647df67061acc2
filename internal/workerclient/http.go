package workerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"dispatchd/internal/apperrors"
	"dispatchd/internal/model"
)

// HTTPDispatcher sends dispatch requests to a worker's HTTP callback
// endpoint and polls nothing — workers push their terminal status back to
// POST /workers/{id}/callback, so Run here only has to deliver the bind
// and report a transport-level failure; the actual terminal status comes
// back asynchronously through that callback and is applied by
// internal/dispatchloop's WorkerCallback, not by this call. Run therefore returns as soon as the
// worker has accepted the bind.
type HTTPDispatcher struct {
	Client *http.Client
}

// NewHTTPDispatcher returns a dispatcher with a bounded default timeout on
// the bind request itself (not on command execution, which the worker
// tracks independently).
func NewHTTPDispatcher() *HTTPDispatcher {
	return &HTTPDispatcher{Client: &http.Client{Timeout: 10 * time.Second}}
}

func (d *HTTPDispatcher) Run(ctx context.Context, rn string, req DispatchRequest) (model.Status, string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return model.StatusError, "", &apperrors.ExecutionError{CommandID: req.CommandID, Msg: err.Error()}
	}

	url := fmt.Sprintf("http://%s/bind", rn)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return model.StatusError, "", &apperrors.WorkerUnavailableError{RenderNode: rn, Msg: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(httpReq)
	if err != nil {
		return model.StatusError, "", &apperrors.WorkerUnavailableError{RenderNode: rn, Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return model.StatusError, "", &apperrors.WorkerUnavailableError{RenderNode: rn, Msg: fmt.Sprintf("bind rejected: %d", resp.StatusCode)}
	}
	return model.StatusRunning, "", nil
}

func (d *HTTPDispatcher) Cancel(ctx context.Context, rn string, commandID int) error {
	url := fmt.Sprintf("http://%s/cancel/%d", rn, commandID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return &apperrors.WorkerUnavailableError{RenderNode: rn, Msg: err.Error()}
	}
	resp, err := d.Client.Do(httpReq)
	if err != nil {
		return &apperrors.WorkerUnavailableError{RenderNode: rn, Msg: err.Error()}
	}
	defer resp.Body.Close()
	return nil
}
