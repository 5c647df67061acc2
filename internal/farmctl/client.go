// Package farmctl is the testable core of the farmctl command-line client:
// a thin HTTP client over dispatchd's control API, kept separate from
// cmd/farmctl/main.go so the request-building and response-interpreting
// logic can be exercised without a cobra.Command in the loop.
package farmctl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"dispatchd/internal/cliexit"
)

// Client issues control-API requests against a dispatchd server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New builds a Client with a bounded request timeout; farmctl invocations
// are one-shot and should never hang a scripted caller indefinitely.
func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

// SubmitGraph posts a raw submission document (the graph JSON) and
// returns the server's plain-text acknowledgement body.
func (c *Client) SubmitGraph(doc []byte, user string) (string, error) {
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+"/graphs/", bytes.NewReader(doc))
	if err != nil {
		return "", &cliexit.Error{Code: cliexit.UsageError, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Dispatch-User", user)
	}
	return c.do(req)
}

// SetStatus issues the CANCELED/PAUSED/READY control operation against a
// single folder or task node.
func (c *Client) SetStatus(id int, kind, status string) (string, error) {
	body, err := json.Marshal(struct {
		Status string `json:"status"`
		Kind   string `json:"kind"`
	}{Status: status, Kind: kind})
	if err != nil {
		return "", &cliexit.Error{Code: cliexit.UsageError, Message: err.Error()}
	}
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/nodes/%d/status", c.BaseURL, id), bytes.NewReader(body))
	if err != nil {
		return "", &cliexit.Error{Code: cliexit.UsageError, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// PatchNode sets a node's dispatchKey and/or maxRN. A nil pointer omits
// that field from the request body, matching dispatchd's "exactly the
// fields you send are changed" PATCH semantics.
func (c *Client) PatchNode(id int, kind string, dispatchKey *float64, maxRN *int) (string, error) {
	body, err := json.Marshal(struct {
		Kind        string   `json:"kind"`
		DispatchKey *float64 `json:"dispatchKey,omitempty"`
		MaxRN       *int     `json:"maxRN,omitempty"`
	}{Kind: kind, DispatchKey: dispatchKey, MaxRN: maxRN})
	if err != nil {
		return "", &cliexit.Error{Code: cliexit.UsageError, Message: err.Error()}
	}
	req, err := http.NewRequest(http.MethodPatch, fmt.Sprintf("%s/nodes/%d", c.BaseURL, id), bytes.NewReader(body))
	if err != nil {
		return "", &cliexit.Error{Code: cliexit.UsageError, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// SetLicenceQuota sets the capacity of one licence token name within a
// pool. An empty token is sent as "-", which the server stores like any
// other token name.
func (c *Client) SetLicenceQuota(pool, token string, capacity int) (string, error) {
	body, err := json.Marshal(struct {
		Capacity int `json:"capacity"`
	}{Capacity: capacity})
	if err != nil {
		return "", &cliexit.Error{Code: cliexit.UsageError, Message: err.Error()}
	}
	if token == "" {
		token = "-"
	}
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/pools/%s/licences/%s", c.BaseURL, pool, token), bytes.NewReader(body))
	if err != nil {
		return "", &cliexit.Error{Code: cliexit.UsageError, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// do sends req and classifies the response: a 2xx is success, a 4xx is a
// server rejection (bad request content, not a transport problem), and
// anything else (including a failed round trip) is a transport error.
func (c *Client) do(req *http.Request) (string, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", &cliexit.Error{Code: cliexit.TransportError, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return string(body), nil
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return "", &cliexit.Error{Code: cliexit.ServerRejected, Message: fmt.Sprintf("%s: %s", resp.Status, string(body))}
	}
	return "", &cliexit.Error{Code: cliexit.TransportError, Message: fmt.Sprintf("%s: %s", resp.Status, string(body))}
}
