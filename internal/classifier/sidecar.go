package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/medsage/medsage-server/internal/config"
)

// SidecarModel calls a TensorFlow-Serving style inference sidecar over
// HTTP. The sidecar owns the trained weights; this process only ships
// tensors to it.
type SidecarModel struct {
	cfg    func() config.ClassifierConfig
	client *http.Client
}

func NewSidecarModel(cfg func() config.ClassifierConfig) *SidecarModel {
	return &SidecarModel{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg().Timeout,
		},
	}
}

type predictRequest struct {
	Instances Tensor `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
}

// Predict sends the tensor to the sidecar and returns its single scalar.
func (m *SidecarModel) Predict(ctx context.Context, tensor Tensor) (float64, error) {
	cfg := m.cfg()

	body, err := json.Marshal(predictRequest{Instances: tensor})
	if err != nil {
		return 0, fmt.Errorf("marshal predict request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	url := cfg.Address + "/v1/models/malaria:predict"
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read classifier response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, string(data))
	}

	var pr predictResponse
	if err := json.Unmarshal(data, &pr); err != nil {
		return 0, fmt.Errorf("unmarshal classifier response: %w", err)
	}
	if len(pr.Predictions) == 0 || len(pr.Predictions[0]) == 0 {
		return 0, fmt.Errorf("classifier returned empty prediction")
	}

	score := pr.Predictions[0][0]
	if score < 0 || score > 1 {
		return 0, fmt.Errorf("classifier score %v outside [0,1]", score)
	}
	return score, nil
}
