package graphbuilder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"dispatchd/internal/apperrors"
)

// Submit serializes the graph and POSTs it to host:port/graphs/, mirroring
// puliclient.Graph.submit. Any response other than 200 or 201 is a
// SubmissionError carrying the status code and body.
func (g *Graph) Submit(ctx context.Context, host string, port int) error {
	doc, err := g.PrepareGraphRepresentation()
	if err != nil {
		return err
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return &apperrors.SubmissionError{Reason: err.Error()}
	}

	url := fmt.Sprintf("http://%s:%d/graphs/", host, port)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &apperrors.SubmissionError{Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return &apperrors.SubmissionError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return &apperrors.SubmissionError{Reason: fmt.Sprintf("%d: %s", resp.StatusCode, respBody)}
	}
	return nil
}
