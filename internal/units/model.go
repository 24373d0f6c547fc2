package units

import "time"

// OccupancyStatus enumerates how a unit is occupied. Non-occupancy charge
// heads are waived for owner-occupied units.
type OccupancyStatus string

const (
	OccupancyVacant        OccupancyStatus = "vacant"
	OccupancyOwnerOccupied OccupancyStatus = "owner_occupied"
	OccupancyRented        OccupancyStatus = "rented"
)

// Unit is one billable flat belonging to a society.
type Unit struct {
	ID         int64           `json:"id"`
	SocietyID  int64           `json:"societyId"`
	Number     string          `json:"number"`
	AreaSqft   float64         `json:"areaSqft"`
	Occupancy  OccupancyStatus `json:"occupancyStatus"`
	OwnerID    *int64          `json:"ownerId,omitempty"`
	OccupantID *int64          `json:"occupantId,omitempty"`
	Active     bool            `json:"active"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// ListFilters represents standard list page filters.
type ListFilters struct {
	Page      int
	Limit     int
	Search    string
	Occupancy OccupancyStatus
	Active    *bool
}
