// Package returns lets customers request and cancel returns for delivered items.
package returns

import (
	"errors"
	"time"
)

// Reason is one of the fixed return reason codes.
type Reason string

const (
	ReasonDamaged        Reason = "damaged"
	ReasonDefective      Reason = "defective"
	ReasonWrongItem      Reason = "wrong_item"
	ReasonSizeIssue      Reason = "size_issue"
	ReasonNotAsDescribed Reason = "not_as_described"
	ReasonQualityIssue   Reason = "quality_issue"
	ReasonChangedMind    Reason = "changed_mind"
)

// Reasons lists every accepted reason in display order.
var Reasons = []Reason{
	ReasonDamaged, ReasonDefective, ReasonWrongItem, ReasonSizeIssue,
	ReasonNotAsDescribed, ReasonQualityIssue, ReasonChangedMind,
}

// Valid reports whether r is a known reason.
func (r Reason) Valid() bool {
	for _, known := range Reasons {
		if r == known {
			return true
		}
	}
	return false
}

// Status of a return request. Only pending → cancelled is driven by the client.
type Status string

const (
	StatusPending         Status = "pending"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusPickupScheduled Status = "pickup_scheduled"
	StatusPickedUp        Status = "picked_up"
	StatusRefundInitiated Status = "refund_initiated"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

// Active reports whether the request still blocks a new one for the same item.
func (s Status) Active() bool {
	return s != StatusCancelled && s != StatusRejected
}

var (
	ErrNotFound      = errors.New("returns: request not found")
	ErrActiveExists  = errors.New("returns: active request exists")
	ErrNotPending    = errors.New("returns: request is not pending")
	ErrNotDelivered  = errors.New("returns: item not delivered")
	ErrWindowExpired = errors.New("returns: return window expired")
)

// Request is a persisted return request.
type Request struct {
	ID            string    `json:"id"`
	OrderItemID   string    `json:"order_item_id"`
	OrderID       string    `json:"order_id"`
	UserID        string    `json:"-"`
	Reason        Reason    `json:"reason"`
	ReasonDetails string    `json:"reason_details,omitempty"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Eligibility describes whether a return can be requested for an item.
type Eligibility struct {
	OrderItemID string     `json:"order_item_id"`
	Eligible    bool       `json:"eligible"`
	Reason      string     `json:"reason,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Active      *Request   `json:"active_request,omitempty"`
}
