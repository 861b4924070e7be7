package usecases

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/domain"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/core/ports"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/pkg/metrics"
	"github.com/itsmeussa/annuaire-voyage-sub000/internal/pkg/telemetry"
)

const (
	outreachSubject   = "Invitation: Activate your profile on TravelAgencies.World"
	maxEmailLength    = 100
	defaultContactBy  = "Unknown"
	defaultCandidates = 50
)

var (
	junkExtensions = []string{"png", "jpg", "jpeg", "gif", "svg", "webp", "js", "css", "woff", "woff2", "ttf", "eot", "mp4"}
	junkDomains    = []string{"sentry", "example.com", "domain.com", "email.com", "wixpress.com", "cloudflare.com"}
)

var invitationTmpl = template.Must(template.New("invitation").Parse(`<div style="font-family: Arial, sans-serif; color: #333; line-height: 1.6; max-width: 600px;">
<p>Hello <strong>{{.Title}}</strong>,</p>
<p>I am writing to inform you that <strong>{{.Title}}</strong> is featured on <a href="https://travelagencies.world" style="color: #2563eb; text-decoration: none;">TravelAgencies.World</a>, the global directory connecting travelers with trusted travel professionals.</p>
<p><strong>You can view your public profile here:</strong><br><a href="{{.ProfileURL}}" style="color: #2563eb;">{{.ProfileURL}}</a></p>
<h3>Exclusive Invitation</h3>
<p>We are currently selecting our <strong>Founding Partners</strong>. Claim your profile and become a Verified Agency to unlock full control over your listing (photos, contacts, services).</p>
<p>Use this <strong>VIP Referral Code</strong> during sign-up to fast-track your verification:<br>
<span style="font-size: 18px; font-weight: bold; color: #2563eb; background: #eff6ff; padding: 5px 10px; border-radius: 4px;">{{.ReferralCode}}</span></p>
<p>Kind regards,<br>TravelAgencies.World</p>
<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">
<p style="font-size: 12px; color: #888;">You are receiving this notification because your business is listed in our public directory. <a href="mailto:contact@travelagencies.world" style="color: #888;">Unsubscribe</a></p>
</div>`))

// OutreachConfig parameterises invitation emails.
type OutreachConfig struct {
	ProfileBaseURL string
	ReferralCode   string
	SentBy         string
}

// OutreachService invites unregistered agencies and keeps the contacted
// registry.
type OutreachService struct {
	agencies  ports.AgencyRepository
	contacts  ports.ContactRepository
	mailer    ports.Mailer
	publisher ports.EventPublisher
	cfg       OutreachConfig
}

// NewOutreachService creates a new OutreachService. mailer and publisher may
// be nil; sending then fails and events are skipped.
func NewOutreachService(
	agencies ports.AgencyRepository,
	contacts ports.ContactRepository,
	mailer ports.Mailer,
	publisher ports.EventPublisher,
	cfg OutreachConfig,
) *OutreachService {
	cfg.ProfileBaseURL = strings.TrimRight(cfg.ProfileBaseURL, "/")
	return &OutreachService{
		agencies:  agencies,
		contacts:  contacts,
		mailer:    mailer,
		publisher: publisher,
		cfg:       cfg,
	}
}

// ValidEmail rejects addresses that are too long, no-reply boxes, asset file
// names picked up by scraping, and known placeholder domains.
func ValidEmail(email string) bool {
	if email == "" || len(email) > maxEmailLength {
		return false
	}
	if !strings.Contains(email, "@") {
		return false
	}
	lower := strings.ToLower(email)
	if strings.Contains(lower, "noreply") || strings.Contains(lower, "no-reply") {
		return false
	}
	for _, ext := range junkExtensions {
		if strings.HasSuffix(lower, "."+ext) {
			return false
		}
	}
	for _, d := range junkDomains {
		if strings.Contains(lower, d) {
			return false
		}
	}
	return true
}

// PreferredEmail picks the best address from candidates: the first valid
// info@ or contact@ box, else the first valid one.
func PreferredEmail(candidates []string) string {
	var fallback string
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if !ValidEmail(c) {
			continue
		}
		lower := strings.ToLower(c)
		if strings.HasPrefix(lower, "info") || strings.HasPrefix(lower, "contact") {
			return c
		}
		if fallback == "" {
			fallback = c
		}
	}
	return fallback
}

// Candidates returns agencies with a usable email that have no contact
// record yet.
func (s *OutreachService) Candidates(ctx context.Context, limit int) ([]domain.Agency, error) {
	if limit <= 0 {
		limit = defaultCandidates
	}
	all, err := s.agencies.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agencies: %w", err)
	}
	records, err := s.contacts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[r.AgencyID] = struct{}{}
	}

	out := make([]domain.Agency, 0, limit)
	for i := range all {
		a := &all[i]
		if _, ok := seen[a.ID]; ok {
			continue
		}
		if !ValidEmail(a.Email) {
			continue
		}
		out = append(out, *a)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Compose renders the invitation for an agency.
func (s *OutreachService) Compose(a *domain.Agency) (*domain.OutreachEmail, error) {
	if !ValidEmail(a.Email) {
		return nil, fmt.Errorf("%w: agency %s has no usable email", domain.ErrInvalidQuery, a.ID)
	}
	var buf bytes.Buffer
	err := invitationTmpl.Execute(&buf, struct {
		Title        string
		ProfileURL   string
		ReferralCode string
	}{
		Title:        a.Title,
		ProfileURL:   s.cfg.ProfileBaseURL + "/" + a.Slug,
		ReferralCode: s.cfg.ReferralCode,
	})
	if err != nil {
		return nil, fmt.Errorf("render invitation: %w", err)
	}
	return &domain.OutreachEmail{
		AgencyID: a.ID,
		To:       a.Email,
		Subject:  outreachSubject,
		HTML:     buf.String(),
	}, nil
}

// ComposeFor loads the agency and renders its invitation.
func (s *OutreachService) ComposeFor(ctx context.Context, agencyID string) (*domain.OutreachEmail, error) {
	a, err := s.agencies.GetByID(ctx, agencyID)
	if err != nil {
		return nil, fmt.Errorf("get agency %s: %w", agencyID, err)
	}
	return s.Compose(a)
}

// Request queues an invitation for asynchronous delivery.
func (s *OutreachService) Request(ctx context.Context, agencyID, by string) (*domain.OutreachRequest, error) {
	if agencyID == "" {
		return nil, fmt.Errorf("%w: agency id is required", domain.ErrInvalidQuery)
	}
	if s.publisher == nil {
		return nil, fmt.Errorf("%w: outreach queue", domain.ErrUnavailable)
	}
	if _, err := s.agencies.GetByID(ctx, agencyID); err != nil {
		return nil, err
	}
	req := &domain.OutreachRequest{AgencyID: agencyID, RequestedBy: orDefault(by, s.cfg.SentBy), RequestedAt: time.Now().UTC()}
	if err := s.publisher.PublishOutreachRequested(ctx, req); err != nil {
		return nil, fmt.Errorf("publish outreach request: %w", err)
	}
	return req, nil
}

// Reserve claims the agency for an in-flight send.
func (s *OutreachService) Reserve(ctx context.Context, agencyID, by string) error {
	return s.contacts.Reserve(ctx, agencyID, orDefault(by, s.cfg.SentBy))
}

// Release drops a reservation after a failed send.
func (s *OutreachService) Release(ctx context.Context, agencyID string) error {
	return s.contacts.Unmark(ctx, agencyID)
}

// Send delivers a composed email.
func (s *OutreachService) Send(ctx context.Context, email *domain.OutreachEmail) error {
	ctx, span := telemetry.StartSpan(ctx, "OutreachService.Send")
	defer span.End()
	span.SetAttributes(telemetry.AttrAgencyID.String(email.AgencyID))

	if s.mailer == nil {
		metrics.OutreachEmails.WithLabelValues("skipped").Inc()
		return fmt.Errorf("%w: mailer", domain.ErrUnavailable)
	}
	if err := s.mailer.Send(ctx, email); err != nil {
		metrics.OutreachEmails.WithLabelValues("failed").Inc()
		return fmt.Errorf("send to %s: %w", email.To, err)
	}
	metrics.OutreachEmails.WithLabelValues("sent").Inc()
	return nil
}

// MarkContacted records the agency as contacted. An empty by is stored as
// "Unknown".
func (s *OutreachService) MarkContacted(ctx context.Context, agencyID, by string) (*domain.ContactRecord, error) {
	if agencyID == "" {
		return nil, fmt.Errorf("%w: agency id is required", domain.ErrInvalidQuery)
	}
	rec := &domain.ContactRecord{
		AgencyID:    agencyID,
		Contacted:   true,
		ContactedBy: orDefault(by, defaultContactBy),
		ContactedAt: time.Now().UTC(),
	}
	if err := s.contacts.Mark(ctx, rec); err != nil {
		return nil, fmt.Errorf("mark contacted: %w", err)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishAgencyContacted(ctx, rec); err != nil {
			slog.Warn("publish agency contacted", "agency_id", agencyID, "error", err)
		}
	}
	return rec, nil
}

// UnmarkContacted deletes the contact record.
func (s *OutreachService) UnmarkContacted(ctx context.Context, agencyID string) error {
	if agencyID == "" {
		return fmt.Errorf("%w: agency id is required", domain.ErrInvalidQuery)
	}
	return s.contacts.Unmark(ctx, agencyID)
}

// Contacted returns the registry keyed by agency id.
func (s *OutreachService) Contacted(ctx context.Context) (map[string]domain.ContactRecord, error) {
	records, err := s.contacts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	out := make(map[string]domain.ContactRecord, len(records))
	for _, r := range records {
		if r.Pending {
			continue
		}
		out[r.AgencyID] = r
	}
	return out, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
