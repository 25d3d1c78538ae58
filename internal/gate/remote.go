package gate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RemoteClassifier asks an HTTP service. The service receives {"text": ...}
// and answers {"answer": null} to pass or {"answer": "<canned text>"} to block.
type RemoteClassifier struct {
	URL    string
	Client *http.Client
}

type remoteReq struct {
	Text string `json:"text"`
}

type remoteResp struct {
	Answer *string `json:"answer"`
}

func NewRemoteClassifier(url string) *RemoteClassifier {
	return &RemoteClassifier{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (r *RemoteClassifier) Classify(ctx context.Context, text string) (Verdict, error) {
	b, err := json.Marshal(remoteReq{Text: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("sensitivity service: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded remoteResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if decoded.Answer == nil {
		return Passed{}, nil
	}
	return Blocked{Response: *decoded.Answer}, nil
}
