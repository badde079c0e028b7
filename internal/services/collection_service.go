package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"mahal/internal/core"
	"mahal/internal/metrics"
	"mahal/internal/ports"
)

// SyncPublisher announces collection writes to the ledger worker.
type SyncPublisher interface {
	PublishCollectionSync(ctx context.Context, id int64) error
	PublishCollectionDelete(ctx context.Context, id int64, receiptNumber string) error
}

// CollectionInput is the donation write payload.
type CollectionInput struct {
	Amount        core.Money
	Description   string
	Category      string
	FundType      string // wins over Category when set
	CollectedBy   string
	MemberID      *int64
	Date          time.Time // zero means now
	ReceiptNumber string    // empty means generated
}

// EffectiveCategory is the raw category that will be stored.
func (in CollectionInput) EffectiveCategory() string {
	if strings.TrimSpace(in.FundType) != "" {
		return in.FundType
	}
	return in.Category
}

type memberDirectory interface {
	GetMember(ctx context.Context, id int64) (core.Member, error)
	ports.MemberLookup
}

// CollectionService records fund collections and keeps reports and the
// ledger informed of every write.
type CollectionService struct {
	store      ports.CollectionStore
	members    memberDirectory
	normalizer core.Normalizer
	publisher  SyncPublisher
	reports    Invalidator
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewCollectionService wires the collection store. publisher and reports may
// be nil.
func NewCollectionService(store ports.CollectionStore, members memberDirectory, n core.Normalizer,
	publisher SyncPublisher, reports Invalidator, m *metrics.Metrics) *CollectionService {
	return &CollectionService{
		store:      store,
		members:    members,
		normalizer: n,
		publisher:  publisher,
		reports:    reports,
		metrics:    m,
		now:        time.Now,
	}
}

// NewReceiptNumber returns RCPT-<yyyymmdd>-<8 hex>.
func NewReceiptNumber(at time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "RCPT-" + at.UTC().Format("20060102") + "-" + id[:8]
}

func (s *CollectionService) Record(ctx context.Context, in CollectionInput) (core.FundCollection, error) {
	now := s.now().UTC()
	c := core.FundCollection{
		Amount:        in.Amount,
		Category:      in.EffectiveCategory(),
		Description:   in.Description,
		CollectedBy:   in.CollectedBy,
		MemberID:      in.MemberID,
		CollectedDate: in.Date,
		ReceiptNumber: strings.TrimSpace(in.ReceiptNumber),
	}
	if c.CollectedDate.IsZero() {
		c.CollectedDate = now
	}
	if c.ReceiptNumber == "" {
		c.ReceiptNumber = NewReceiptNumber(c.CollectedDate)
	}
	if err := s.check(ctx, c); err != nil {
		return core.FundCollection{}, err
	}

	created, err := s.store.CreateCollection(ctx, c)
	if err != nil {
		return core.FundCollection{}, fmt.Errorf("record collection: %w", err)
	}
	bucket := s.normalizer.Normalize(created.Category)
	s.metrics.IncCollectionRecorded(string(bucket))
	invalidate(s.reports)

	slog.InfoContext(ctx, "Fund collection recorded",
		"id", created.ID,
		"bucket", bucket,
		"amount_cents", created.Amount.Cents,
		"receipt", created.ReceiptNumber)

	s.publishSync(ctx, created.ID)
	return s.withMember(ctx, created)
}

func (s *CollectionService) Get(ctx context.Context, id int64) (core.FundCollection, error) {
	c, err := s.store.GetCollection(ctx, id)
	if err != nil {
		return core.FundCollection{}, err
	}
	return s.withMember(ctx, c)
}

func (s *CollectionService) List(ctx context.Context) ([]core.FundCollection, error) {
	list, err := s.store.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return attachMembers(ctx, s.members, list)
}

// Update replaces the collection's fields. A zero Date or an empty
// ReceiptNumber keeps the stored value.
func (s *CollectionService) Update(ctx context.Context, id int64, in CollectionInput) (core.FundCollection, error) {
	current, err := s.store.GetCollection(ctx, id)
	if err != nil {
		return core.FundCollection{}, err
	}
	c := current
	c.Amount = in.Amount
	c.Category = in.EffectiveCategory()
	c.Description = in.Description
	c.CollectedBy = in.CollectedBy
	c.MemberID = in.MemberID
	c.Member = nil
	if !in.Date.IsZero() {
		c.CollectedDate = in.Date
	}
	if r := strings.TrimSpace(in.ReceiptNumber); r != "" {
		c.ReceiptNumber = r
	}
	if err := s.check(ctx, c); err != nil {
		return core.FundCollection{}, err
	}

	updated, err := s.store.UpdateCollection(ctx, c)
	if err != nil {
		return core.FundCollection{}, fmt.Errorf("update collection %d: %w", id, err)
	}
	invalidate(s.reports)
	s.publishSync(ctx, updated.ID)
	return s.withMember(ctx, updated)
}

func (s *CollectionService) Delete(ctx context.Context, id int64) error {
	current, err := s.store.GetCollection(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCollection(ctx, id); err != nil {
		return err
	}
	invalidate(s.reports)

	slog.InfoContext(ctx, "Fund collection deleted", "id", id, "receipt", current.ReceiptNumber)

	if s.publisher != nil {
		if err := s.publisher.PublishCollectionDelete(ctx, id, current.ReceiptNumber); err != nil {
			s.metrics.IncSyncPublishFailure()
			slog.ErrorContext(ctx, "Failed to publish delete message", "id", id, "error", err)
		}
	}
	return nil
}

// check validates c and makes sure a member reference points somewhere.
func (s *CollectionService) check(ctx context.Context, c core.FundCollection) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.MemberID == nil {
		return nil
	}
	if _, err := s.members.GetMember(ctx, *c.MemberID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.NewValidationError("memberId", fmt.Sprintf("member %d does not exist", *c.MemberID))
		}
		return fmt.Errorf("check member: %w", err)
	}
	return nil
}

func (s *CollectionService) withMember(ctx context.Context, c core.FundCollection) (core.FundCollection, error) {
	list, err := attachMembers(ctx, s.members, []core.FundCollection{c})
	if err != nil {
		return core.FundCollection{}, err
	}
	return list[0], nil
}

// publishSync never fails the write; the record is already stored.
func (s *CollectionService) publishSync(ctx context.Context, id int64) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No sync publisher configured, skipping sync message", "id", id)
		return
	}
	if err := s.publisher.PublishCollectionSync(ctx, id); err != nil {
		s.metrics.IncSyncPublishFailure()
		slog.ErrorContext(ctx, "Failed to publish sync message", "id", id, "error", err)
	}
}
