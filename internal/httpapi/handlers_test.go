package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"dispatchd/internal/assignment"
	"dispatchd/internal/dispatchloop"
	"dispatchd/internal/logging"
	"dispatchd/internal/metrics"
	"dispatchd/internal/model"
	"dispatchd/internal/workerclient"

	"github.com/prometheus/client_golang/prometheus"
)

type fakeStore struct{}

func (fakeStore) Flush(context.Context, *model.Tree) error     { return nil }
func (fakeStore) Restore(context.Context) (*model.Tree, error) { return model.NewTree(), nil }
func (fakeStore) Close() error                                 { return nil }

func newTestServer(t *testing.T) (*Server, *model.Tree, *workerclient.FakeDispatcher) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tree := model.NewTree()
	tree.ToCreate.Drain()

	dispatcher := workerclient.NewFakeDispatcher()
	licences := assignment.NewLicenceTracker(map[string]int{})
	assignLoop := assignment.NewLoop(assignment.Config{HeartbeatTimeout: time.Minute}, dispatcher, nil, licences)

	reg := prometheus.NewRegistry()
	loop := dispatchloop.New(tree, assignLoop, fakeStore{}, metrics.New(reg), logging.Nop{}, dispatchloop.Config{
		AssignTickInterval:  time.Second,
		PersistTickInterval: time.Second,
		SweepInterval:       time.Second,
		CommandTimeout:      time.Hour,
	})

	return &Server{Loop: loop, Log: logging.Nop{}, Registry: reg}, tree, dispatcher
}

func doRequest(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func submissionDoc() map[string]any {
	return map[string]any{
		"schemaVersion": "1.0.0",
		"name":          "shot01",
		"user":          "alice",
		"poolName":      "default",
		"maxRN":         -1,
		"root":          0,
		"nodes": []map[string]any{
			{"index": 0, "type": "folder", "name": "root", "children": []int{1}},
			{"index": 1, "type": "task", "name": "render", "commands": []map[string]any{
				{"name": "frame 1"},
			}},
		},
	}
}

func TestSubmitGraphGraftsOntoTree(t *testing.T) {
	s, tree, _ := newTestServer(t)
	r := NewRouter(s)

	w := doRequest(r, http.MethodPost, "/graphs/", submissionDoc())
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Location") == "" {
		t.Fatalf("expected Location header")
	}
	if len(tree.Tasks) != 1 {
		t.Fatalf("expected one task grafted onto the tree, got %d", len(tree.Tasks))
	}
}

func TestSubmitGraphRejectsBadSchema(t *testing.T) {
	s, _, _ := newTestServer(t)
	r := NewRouter(s)

	w := doRequest(r, http.MethodPost, "/graphs/", map[string]any{"schemaVersion": "9.9.9"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSetStatusCancelsTask(t *testing.T) {
	s, tree, _ := newTestServer(t)
	r := NewRouter(s)

	task := &model.TaskNode{ID: tree.NewTaskID(), ParentID: tree.RootID, Status: model.StatusReady}
	tree.RegisterTask(task)

	w := doRequest(r, http.MethodPost, "/nodes/"+strconv.Itoa(task.ID)+"/status", statusChangeRequest{Status: "CANCELED", Kind: "task"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if tree.Tasks[task.ID].Status != model.StatusCanceled {
		t.Fatalf("expected task to be CANCELED, got %s", tree.Tasks[task.ID].Status)
	}
}

func TestSetStatusUnknownNodeReturns404(t *testing.T) {
	s, _, _ := newTestServer(t)
	r := NewRouter(s)

	w := doRequest(r, http.MethodPost, "/nodes/999/status", statusChangeRequest{Status: "PAUSED", Kind: "task"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestSetStatusRejectsUnknownStatusValue(t *testing.T) {
	s, tree, _ := newTestServer(t)
	r := NewRouter(s)
	task := &model.TaskNode{ID: tree.NewTaskID(), ParentID: tree.RootID, Status: model.StatusReady}
	tree.RegisterTask(task)

	w := doRequest(r, http.MethodPost, "/nodes/"+strconv.Itoa(task.ID)+"/status", statusChangeRequest{Status: "RUNNING", Kind: "task"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPatchNodeChangesDispatchKeyAndMaxRN(t *testing.T) {
	s, tree, _ := newTestServer(t)
	r := NewRouter(s)
	task := &model.TaskNode{ID: tree.NewTaskID(), ParentID: tree.RootID, Status: model.StatusReady}
	tree.RegisterTask(task)

	key, maxRN := 7.0, 3
	w := doRequest(r, http.MethodPatch, "/nodes/"+strconv.Itoa(task.ID), patchNodeRequest{Kind: "task", DispatchKey: &key, MaxRN: &maxRN})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if tree.Tasks[task.ID].DispatchKey != 7 || tree.Tasks[task.ID].MaxRN != 3 {
		t.Fatalf("unexpected task fields: %+v", tree.Tasks[task.ID])
	}
}

func TestSetLicenceQuota(t *testing.T) {
	s, _, _ := newTestServer(t)
	r := NewRouter(s)

	w := doRequest(r, http.MethodPost, "/pools/farm/licences/maya", licenceQuotaRequest{Capacity: 2})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if got := s.Loop.Assign.Licences.InUse("farm/maya"); got != 0 {
		t.Fatalf("expected fresh quota to start at zero in-use, got %d", got)
	}
}

func TestWorkerCallbackAppliesTerminalStatusAndReleasesLicence(t *testing.T) {
	s, tree, _ := newTestServer(t)
	r := NewRouter(s)

	task := &model.TaskNode{ID: tree.NewTaskID(), ParentID: tree.RootID, Status: model.StatusReady, Licence: "maya"}
	tree.RegisterTask(task)
	cmd := &model.Command{ID: tree.NewCommandID(), TaskID: task.ID, Status: model.StatusRunning, MaxAttempt: 1}
	tree.RegisterCommand(cmd)
	task.Commands = append(task.Commands, cmd.ID)

	s.Loop.Assign.Licences.SetCapacity("maya", 1)
	s.Loop.Assign.Licences.Acquire("maya")

	tree.RenderNodes["rn1"] = &model.RenderNode{Name: "rn1", Status: model.RenderNodeUp, CurrentCommands: []int{cmd.ID}}

	w := doRequest(r, http.MethodPost, "/workers/rn1/callback", workerCallbackRequest{CommandID: cmd.ID, Status: int(model.StatusDone)})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if tree.Commands[cmd.ID].Status != model.StatusDone {
		t.Fatalf("expected command DONE, got %s", tree.Commands[cmd.ID].Status)
	}
	if got := s.Loop.Assign.Licences.InUse("maya"); got != 0 {
		t.Fatalf("expected licence token released, got %d in use", got)
	}
	if len(tree.RenderNodes["rn1"].CurrentCommands) != 0 {
		t.Fatalf("expected command removed from render node's current list")
	}
}

func TestWorkerCallbackHeartbeatOnly(t *testing.T) {
	s, tree, _ := newTestServer(t)
	r := NewRouter(s)
	tree.RenderNodes["rn1"] = &model.RenderNode{Name: "rn1", Status: model.RenderNodeUp}

	w := doRequest(r, http.MethodPost, "/workers/rn1/callback", workerCallbackRequest{})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if tree.RenderNodes["rn1"].LastHeartbeat.IsZero() {
		t.Fatalf("expected heartbeat to be refreshed")
	}
}

func TestMetricsEndpointServesPrometheusExposition(t *testing.T) {
	s, _, _ := newTestServer(t)
	r := NewRouter(s)

	w := doRequest(r, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

