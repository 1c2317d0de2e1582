package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wonny/qualmom/internal/contracts"
	"github.com/wonny/qualmom/pkg/httputil"
	"github.com/wonny/qualmom/pkg/logger"
)

// Remote executor endpoints
const (
	PathTargetWeights = "/v1/orders/target-weights"
	PathHoldings      = "/v1/holdings"
)

// SubmitRequest is the wire body sent to the optimizer service
type SubmitRequest struct {
	Date        string                   `json:"date"`
	Weights     []contracts.TargetWeight `json:"weights"`
	Constraints contracts.Constraints    `json:"constraints"`
}

// RemoteExecutor forwards weight vectors to an external optimizer/broker
// service. Submissions are never retried; holdings reads are.
type RemoteExecutor struct {
	baseURL string
	submit  *httputil.Client
	query   *httputil.Client
	logger  *logger.Logger
}

// NewRemoteExecutor creates a new remote executor
func NewRemoteExecutor(baseURL string, timeout time.Duration, rateLimit int, log *logger.Logger) *RemoteExecutor {
	return &RemoteExecutor{
		baseURL: strings.TrimRight(baseURL, "/"),
		submit:  httputil.New(log, timeout).DisableRetry().WithRateLimit(rateLimit),
		query:   httputil.New(log, timeout).WithRateLimit(rateLimit),
		logger:  log.WithStage(contracts.StageExecution.String()),
	}
}

// Submit implements contracts.Executor. HTTP 422 is a constraint violation.
func (e *RemoteExecutor) Submit(ctx context.Context, weights contracts.WeightVector, constraints contracts.Constraints) (*contracts.Fills, error) {
	body := SubmitRequest{
		Date:        weights.Date.Format(time.DateOnly),
		Weights:     weights.Weights,
		Constraints: constraints,
	}

	resp, err := e.submit.PostJSON(ctx, e.baseURL+PathTargetWeights, body)
	if err != nil {
		return nil, fmt.Errorf("submit target weights: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var fills contracts.Fills
		if err := httputil.DecodeJSON(resp, &fills); err != nil {
			return nil, err
		}
		e.logger.WithFields(map[string]interface{}{
			"orders":   fills.Count(),
			"turnover": fills.Turnover().StringFixed(2),
		}).Info("Remote orders filled")
		return &fills, nil

	case http.StatusUnprocessableEntity:
		var violation contracts.ConstraintViolationError
		if err := httputil.DecodeJSON(resp, &violation); err != nil {
			return nil, err
		}
		return nil, &violation

	default:
		return nil, unexpectedStatus(resp)
	}
}

// Holdings implements contracts.HoldingsSource
func (e *RemoteExecutor) Holdings(ctx context.Context) (*contracts.Holdings, error) {
	resp, err := e.query.Get(ctx, e.baseURL+PathHoldings)
	if err != nil {
		return nil, fmt.Errorf("get holdings: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, unexpectedStatus(resp)
	}

	var holdings contracts.Holdings
	if err := httputil.DecodeJSON(resp, &holdings); err != nil {
		return nil, err
	}
	if holdings.Positions == nil {
		holdings.Positions = make(map[contracts.Security]float64)
	}
	return &holdings, nil
}

func unexpectedStatus(resp *http.Response) error {
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(snippet, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("executor returned %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("executor returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}
