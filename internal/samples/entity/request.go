package entity

import "time"

// RequestStatus 审核状态
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// Valid reports whether s is one of the three known review statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected:
		return true
	}
	return false
}

// ShippingStatus tracks shipment progress for approved requests only.
type ShippingStatus string

const (
	ShippingLabelCreated      ShippingStatus = "label_created"
	ShippingPreparingShipment ShippingStatus = "preparing_shipment"
	ShippingInTransit         ShippingStatus = "in_transit"
	ShippingOutForDelivery    ShippingStatus = "out_for_delivery"
	ShippingDelivered         ShippingStatus = "delivered"
)

// ShippingOrder 物流状态流转顺序 (forward-only)
var ShippingOrder = []ShippingStatus{
	ShippingLabelCreated,
	ShippingPreparingShipment,
	ShippingInTransit,
	ShippingOutForDelivery,
	ShippingDelivered,
}

// NextShippingStatus computes the single forward step from current. A nil
// current is treated as index 0, so nil advances to preparing_shipment rather
// than label_created. The terminal state and unrecognized values map to
// themselves; callers treat next == current as a no-op.
func NextShippingStatus(current *ShippingStatus) ShippingStatus {
	idx := 0
	if current != nil {
		idx = -1
		for i, s := range ShippingOrder {
			if s == *current {
				idx = i
				break
			}
		}
		if idx == -1 {
			return *current
		}
	}
	next := idx + 1
	if next > len(ShippingOrder)-1 {
		next = len(ShippingOrder) - 1
	}
	return ShippingOrder[next]
}

// SampleRequest 样品申请单
type SampleRequest struct {
	ID          string        `json:"id" gorm:"primaryKey;size:32"`
	CreatorName string        `json:"creator_name" gorm:"size:100;not null"`
	Email       string        `json:"email" gorm:"size:200;not null"`
	ChannelLink string        `json:"channel_link" gorm:"size:500;not null"`
	ProductID   string        `json:"product_id" gorm:"size:32;index"`
	Status      RequestStatus `json:"status" gorm:"size:20;default:pending;index"`

	// Tracking fields, non-null iff Status == approved.
	TrackingLink   *string         `json:"tracking_link" gorm:"size:200"`
	TrackingNumber *string         `json:"tracking_number" gorm:"size:64"`
	Carrier        *string         `json:"carrier" gorm:"size:64"`
	ShippingStatus *ShippingStatus `json:"shipping_status" gorm:"size:32"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SampleRequest) TableName() string {
	return "sample_requests"
}

// Clone returns a deep copy so mirror snapshots can be patched without
// aliasing pointer fields.
func (r SampleRequest) Clone() SampleRequest {
	c := r
	c.TrackingLink = clonePtr(r.TrackingLink)
	c.TrackingNumber = clonePtr(r.TrackingNumber)
	c.Carrier = clonePtr(r.Carrier)
	c.ShippingStatus = clonePtr(r.ShippingStatus)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
