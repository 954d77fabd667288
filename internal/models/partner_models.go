package models

import "time"

type PartnerStatus string

const (
	PartnerPending   PartnerStatus = "PENDING"
	PartnerApproved  PartnerStatus = "APPROVED"
	PartnerRejected  PartnerStatus = "REJECTED"
	PartnerSuspended PartnerStatus = "SUSPENDED"
)

// Partner is a shop that fulfils SHOP orders or quotes CUSTOM ones.
type Partner struct {
	ID        string        `json:"id"`
	OwnerID   string        `json:"owner_id"`
	Name      string        `json:"name"`
	Phone     string        `json:"phone,omitempty"`
	Status    PartnerStatus `json:"status"`
	IsOpen    bool          `json:"is_open"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type PartnerStatusRequest struct {
	Status PartnerStatus `json:"status" validate:"required,oneof=PENDING APPROVED REJECTED SUSPENDED"`
}

type PartnerOpenRequest struct {
	IsOpen *bool `json:"is_open" validate:"required"`
}
