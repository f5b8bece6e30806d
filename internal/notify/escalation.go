package notify

import (
	"context"
	"fmt"
	"time"

	"couplecare-crisis/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// EscalationRequest body posted to the care-team webhook
type EscalationRequest struct {
	CheckID      string    `json:"check_id"`
	CoupleID     string    `json:"couple_id"`
	TargetUserID string    `json:"target_user_id"`
	CheckType    string    `json:"check_type"`
	Response     string    `json:"response"`
	RespondedAt  time.Time `json:"responded_at"`
}

// EscalationClient forwards escalated safety-check responses to the care team
type EscalationClient struct {
	httpClient *resty.Client
	webhookURL string
	logger     *zap.Logger
}

// NewEscalationClient creates a webhook client; an empty URL disables escalation
func NewEscalationClient(webhookURL string, timeout time.Duration, logger *zap.Logger) *EscalationClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &EscalationClient{
		httpClient: client,
		webhookURL: webhookURL,
		logger:     logger,
	}
}

// Enabled reports whether a webhook URL is configured
func (c *EscalationClient) Enabled() bool {
	return c != nil && c.webhookURL != ""
}

// Escalate posts the responded check to the webhook
func (c *EscalationClient) Escalate(ctx context.Context, check *models.SafetyCheck) error {
	if !c.Enabled() {
		return nil
	}

	req := EscalationRequest{
		CheckID:      check.CheckID,
		CoupleID:     check.CoupleID,
		TargetUserID: check.TargetUserID,
		CheckType:    string(check.CheckType),
	}
	if check.Response != nil {
		req.Response = *check.Response
	}
	if check.RespondedAt != nil {
		req.RespondedAt = *check.RespondedAt
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		Post(c.webhookURL)
	if err != nil {
		c.logger.Error("Escalation webhook call failed",
			zap.String("check_id", check.CheckID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to call escalation webhook: %w", err)
	}
	if resp.IsError() {
		c.logger.Error("Escalation webhook returned error",
			zap.String("check_id", check.CheckID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return fmt.Errorf("escalation webhook error: status %d", resp.StatusCode())
	}

	c.logger.Info("Escalated safety check",
		zap.String("check_id", check.CheckID),
		zap.String("couple_id", check.CoupleID),
	)
	return nil
}
