package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/sampleflow/sampleflow/internal/samples/entity"
	"github.com/sampleflow/sampleflow/internal/samples/feed"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateRequestInput 提交样品申请的输入
type CreateRequestInput struct {
	CreatorName string
	Email       string
	ChannelLink string
	ProductID   string
}

// RequestRepository is the sole reader/writer of the sample_requests table.
// After each successful write it publishes a change notification on the feed;
// publish failures are logged and never surfaced to the caller, since the
// database write already succeeded.
type RequestRepository struct {
	db     *gorm.DB
	feed   feed.Feed
	logger *zap.Logger
}

func NewRequestRepository(db *gorm.DB, changeFeed feed.Feed, logger *zap.Logger) *RequestRepository {
	return &RequestRepository{db: db, feed: changeFeed, logger: logger}
}

// Create persists a new pending request keyed by a generated REQ-#### id.
// The id is drawn uniformly from [1000,9999] with no uniqueness check, as the
// original scheme does; a collision surfaces as a primary-key conflict and the
// write fails without retry. CreatedAt is assigned by the database at write
// time; the returned entity carries the client-assigned timestamp so callers
// can display it immediately.
func (r *RequestRepository) Create(ctx context.Context, input CreateRequestInput) (*entity.SampleRequest, error) {
	now := time.Now()
	req := entity.SampleRequest{
		ID:          fmt.Sprintf("REQ-%d", 1000+rand.Intn(9000)),
		CreatorName: input.CreatorName,
		Email:       input.Email,
		ChannelLink: input.ChannelLink,
		ProductID:   input.ProductID,
		Status:      entity.RequestStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := r.db.WithContext(ctx).
		Model(&entity.SampleRequest{}).
		Create(map[string]interface{}{
			"id":           req.ID,
			"creator_name": req.CreatorName,
			"email":        req.Email,
			"channel_link": req.ChannelLink,
			"product_id":   req.ProductID,
			"status":       req.Status,
			"created_at":   gorm.Expr("NOW()"),
			"updated_at":   gorm.Expr("NOW()"),
		}).Error
	if err != nil {
		return nil, err
	}

	r.publish(ctx, feed.Event{RequestID: req.ID, Action: "created"})
	return &req, nil
}

// FindByID 根据ID查询申请单
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*entity.SampleRequest, error) {
	var req entity.SampleRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// List returns all requests, newest first. This is the query the live mirror
// reloads from on every change notification.
func (r *RequestRepository) List(ctx context.Context) ([]entity.SampleRequest, error) {
	var items []entity.SampleRequest
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// SetDecision moves a request to approved or rejected and writes the derived
// tracking field set. It deliberately does not validate the prior status: the
// review surface only offers the action on pending rows, and a repeated call
// simply overwrites with the same derived values.
func (r *RequestRepository) SetDecision(ctx context.Context, id string, status entity.RequestStatus) error {
	updates := map[string]interface{}{
		"status":          status,
		"tracking_link":   nil,
		"tracking_number": nil,
		"carrier":         nil,
		"shipping_status": nil,
		"updated_at":      time.Now(),
	}
	if status == entity.RequestStatusApproved {
		updates["tracking_link"] = DeriveTrackingLink(id)
		updates["tracking_number"] = DeriveTrackingNumber(id)
		updates["carrier"] = DefaultCarrier
		updates["shipping_status"] = entity.ShippingLabelCreated
	}

	res := r.db.WithContext(ctx).
		Model(&entity.SampleRequest{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	r.publish(ctx, feed.Event{RequestID: id, Action: "decided"})
	return nil
}

// AdvanceShipping writes the single shipping_status field. Forward-only
// progression is the caller's policy, not enforced here.
func (r *RequestRepository) AdvanceShipping(ctx context.Context, id string, status entity.ShippingStatus) error {
	res := r.db.WithContext(ctx).
		Model(&entity.SampleRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"shipping_status": status,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	r.publish(ctx, feed.Event{RequestID: id, Action: "shipping_advanced"})
	return nil
}

// SeedIfEmpty inserts the fixed default requests when the table is empty, so
// a fresh deployment has visible content. The emptiness check is not guarded
// against a concurrent first load; the id-keyed inserts de-duplicate via
// ON CONFLICT DO NOTHING.
func (r *RequestRepository) SeedIfEmpty(ctx context.Context) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.SampleRequest{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaults := entity.DefaultRequests()
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&defaults).Error
	if err != nil {
		return err
	}

	r.logger.Info("Seeded default sample requests", zap.Int("count", len(defaults)))
	r.publish(ctx, feed.Event{Action: "seeded"})
	return nil
}

func (r *RequestRepository) publish(ctx context.Context, ev feed.Event) {
	if r.feed == nil {
		return
	}
	if err := r.feed.Publish(ctx, ev); err != nil {
		r.logger.Warn("Failed to publish change event",
			zap.String("request_id", ev.RequestID),
			zap.String("action", ev.Action),
			zap.Error(err),
		)
	}
}

// DefaultCarrier 固定承运商占位值
const DefaultCarrier = "SampleCarrier"

// DeriveTrackingLink returns the internal status-page path for an approved id.
func DeriveTrackingLink(id string) string {
	return "/status/" + id
}

// DeriveTrackingNumber returns a synthetic tracking number for an approved id.
func DeriveTrackingNumber(id string) string {
	return fmt.Sprintf("TRK-%s-%d", id, 1000+rand.Intn(9000))
}
