package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPSentimentScorer calls an external scoring service. The service
// meters usage; Cost in the response feeds the daily budget.
type HTTPSentimentScorer struct {
	endpoint string
	client   *http.Client
	retry    RetryPolicy
}

// NewHTTPSentimentScorer creates a scorer against the given endpoint.
func NewHTTPSentimentScorer(endpoint string, timeout time.Duration) *HTTPSentimentScorer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSentimentScorer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		retry:    DefaultRetryPolicy(),
	}
}

// Score implements SentimentScorer.
func (s *HTTPSentimentScorer) Score(ctx context.Context, symbol string, marketContext string) (SentimentResult, error) {
	reqBody, err := json.Marshal(map[string]string{
		"symbol":  symbol,
		"context": marketContext,
	})
	if err != nil {
		return SentimentResult{}, fmt.Errorf("failed to encode sentiment request: %w", err)
	}

	var result SentimentResult

	err = s.retry.Do(ctx, "sentiment", "Score", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(reqBody))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("sentiment request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("sentiment service returned status %d", resp.StatusCode)
		}

		var body struct {
			Score float64 `json:"score"`
			Cost  float64 `json:"cost"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("failed to decode sentiment response: %w", err)
		}

		if body.Score < -1 || body.Score > 1 {
			return fmt.Errorf("sentiment score %.3f outside [-1,1]", body.Score)
		}

		result = SentimentResult{Score: body.Score, Cost: body.Cost}
		return nil
	})

	return result, err
}
