package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
)

// OutreachInput is the input for the outreach workflow.
type OutreachInput struct {
	AgencyID    string
	RequestedBy string
}

// OutreachResult reports what the workflow did.
type OutreachResult struct {
	AgencyID string
	To       string
	Skipped  bool
}

// WorkflowID is the id of the outreach run for one agency. At most one run
// per agency is open at a time.
func WorkflowID(agencyID string) string {
	return "outreach-" + agencyID
}

// OutreachWorkflow reserves the agency, composes and sends the invitation,
// then confirms the contact record. A failed compose or send releases the
// reservation (saga compensation). An agency that is already contacted is
// skipped without error.
func OutreachWorkflow(ctx workflow.Context, input OutreachInput) (*OutreachResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting outreach workflow", "agencyID", input.AgencyID)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 5 * time.Second,
			MaximumAttempts: 3,
		},
	})
	result := &OutreachResult{AgencyID: input.AgencyID}

	err := workflow.ExecuteActivity(ctx, "ReserveAgency", input.AgencyID, input.RequestedBy).Get(ctx, nil)
	if err != nil {
		var appErr *temporal.ApplicationError
		if errors.As(err, &appErr) && appErr.Type() == ErrTypeAlreadyContacted {
			logger.Info("Agency already contacted, skipping", "agencyID", input.AgencyID)
			result.Skipped = true
			return result, nil
		}
		return nil, err
	}

	var email domain.OutreachEmail
	err = workflow.ExecuteActivity(ctx, "ComposeInvitation", input.AgencyID).Get(ctx, &email)
	if err != nil {
		release(ctx, input.AgencyID)
		return nil, err
	}
	result.To = email.To

	err = workflow.ExecuteActivity(ctx, "SendInvitation", email).Get(ctx, nil)
	if err != nil {
		logger.Warn("Invitation not sent, compensating", "agencyID", input.AgencyID, "error", err)
		release(ctx, input.AgencyID)
		return nil, err
	}

	// The email is out; a failure here leaves the reservation in place so
	// the agency is not invited twice.
	err = workflow.ExecuteActivity(ctx, "ConfirmContacted", input.AgencyID, input.RequestedBy).Get(ctx, nil)
	if err != nil {
		return nil, err
	}

	logger.Info("Invitation sent", "agencyID", input.AgencyID, "to", email.To)
	return result, nil
}

func release(ctx workflow.Context, agencyID string) {
	if err := workflow.ExecuteActivity(ctx, "ReleaseAgency", agencyID).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Error("Release failed", "agencyID", agencyID, "error", err)
	}
}
