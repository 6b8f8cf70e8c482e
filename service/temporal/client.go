package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/walletlens/service/metrics"
	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

// WorkflowName is the registered name of AnalyzeWalletWorkflow.
const WorkflowName = "AnalyzeWalletWorkflow"

// Client starts analysis workflows and reads their results.
type Client struct {
	client    client.Client
	taskQueue string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewClient creates a new Temporal client. If m is nil, no metrics are recorded.
func NewClient(host, namespace, taskQueue string, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return NewClientFromSDK(c, taskQueue, m, logger), nil
}

// NewClientFromSDK wraps an existing SDK client.
func NewClientFromSDK(c client.Client, taskQueue string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		client:    c,
		taskQueue: taskQueue,
		metrics:   m,
		logger:    logger,
	}
}

// WorkflowID returns a fresh workflow ID for an analysis of wallet.
func WorkflowID(wallet string) string {
	return "analyze-wallet-" + wallet + "-" + uuid.NewString()
}

// StartAnalysis starts AnalyzeWalletWorkflow and returns its workflow ID without waiting.
func (c *Client) StartAnalysis(ctx context.Context, input AnalyzeWalletInput) (string, error) {
	id := WorkflowID(input.Wallet)

	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: c.taskQueue,
		Memo: map[string]interface{}{
			"wallet":     input.Wallet,
			"created_by": "walletlens",
		},
	}, WorkflowName, input)
	if err != nil {
		c.logger.Error("failed to start analysis workflow", "wallet", input.Wallet, "error", err)
		return "", fmt.Errorf("failed to start workflow: %w", err)
	}

	c.logger.Info("analysis workflow started",
		"wallet", input.Wallet,
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
	)
	return run.GetID(), nil
}

// Result blocks until the workflow completes and returns its result.
func (c *Client) Result(ctx context.Context, workflowID string) (*AnalyzeWalletResult, error) {
	var result AnalyzeWalletResult
	if err := c.client.GetWorkflow(ctx, workflowID, "").Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("workflow %q failed: %w", workflowID, err)
	}
	return &result, nil
}

// Analyze starts a workflow and waits for its result.
func (c *Client) Analyze(ctx context.Context, input AnalyzeWalletInput) (*AnalyzeWalletResult, error) {
	start := time.Now()
	id, err := c.StartAnalysis(ctx, input)
	if err != nil {
		return nil, err
	}

	result, err := c.Result(ctx, id)
	if c.metrics != nil {
		status := "completed"
		if err != nil {
			status = "failed"
		}
		c.metrics.RecordWorkflowDuration(status, time.Since(start).Seconds())
	}
	return result, err
}

// WorkflowStatus is a summary of a workflow execution.
type WorkflowStatus struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Running   bool      `json:"running"`
	StartTime time.Time `json:"start_time"`
	CloseTime time.Time `json:"close_time,omitempty"`
}

// Status describes the workflow without waiting for it.
func (c *Client) Status(ctx context.Context, workflowID string) (*WorkflowStatus, error) {
	resp, err := c.client.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to describe workflow %q: %w", workflowID, err)
	}

	info := resp.GetWorkflowExecutionInfo()
	status := &WorkflowStatus{
		ID:      workflowID,
		Status:  info.GetStatus().String(),
		Running: info.GetStatus() == enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING,
	}
	if t := info.GetStartTime(); t != nil {
		status.StartTime = t.AsTime()
	}
	if t := info.GetCloseTime(); t != nil {
		status.CloseTime = t.AsTime()
	}
	return status, nil
}

// SDKClient returns the underlying Temporal SDK client for direct workflow operations.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
