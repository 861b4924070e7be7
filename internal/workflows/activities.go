package workflows

import (
	"context"
	"errors"
	"log/slog"

	"go.temporal.io/sdk/temporal"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/usecases"
)

// Application error types the workflow branches on.
const (
	ErrTypeAlreadyContacted = "AlreadyContacted"
	ErrTypeNotDeliverable   = "NotDeliverable"
)

// OutreachActivities holds the activity implementations for the outreach workflow.
type OutreachActivities struct {
	Outreach *usecases.OutreachService
}

// ReserveAgency claims the agency so no other run invites it concurrently.
func (a *OutreachActivities) ReserveAgency(ctx context.Context, agencyID, by string) error {
	err := a.Outreach.Reserve(ctx, agencyID, by)
	if errors.Is(err, domain.ErrAlreadyContacted) {
		return temporal.NewNonRetryableApplicationError("agency already contacted", ErrTypeAlreadyContacted, err)
	}
	return err
}

// ComposeInvitation renders the invitation email for the agency.
func (a *OutreachActivities) ComposeInvitation(ctx context.Context, agencyID string) (*domain.OutreachEmail, error) {
	email, err := a.Outreach.ComposeFor(ctx, agencyID)
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidQuery) {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeNotDeliverable, err)
	}
	return email, err
}

// SendInvitation delivers the composed email.
func (a *OutreachActivities) SendInvitation(ctx context.Context, email domain.OutreachEmail) error {
	err := a.Outreach.Send(ctx, &email)
	if errors.Is(err, domain.ErrUnavailable) {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeNotDeliverable, err)
	}
	return err
}

// ConfirmContacted turns the reservation into a contacted record.
func (a *OutreachActivities) ConfirmContacted(ctx context.Context, agencyID, by string) error {
	_, err := a.Outreach.MarkContacted(ctx, agencyID, by)
	return err
}

// ReleaseAgency drops the reservation (saga compensation).
func (a *OutreachActivities) ReleaseAgency(ctx context.Context, agencyID string) error {
	if err := a.Outreach.Release(ctx, agencyID); err != nil {
		return err
	}
	slog.Info("outreach reservation released", "agency_id", agencyID)
	return nil
}
