package models

import "time"

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Vehicle is owned by exactly one user. Available is false exactly while the
// vehicle backs an active ride.
type Vehicle struct {
	OwnerID    string `json:"owner_id"`
	Number     string `json:"number"`
	Category   string `json:"category"`
	TotalSeats int    `json:"total_seats"`
	Available  bool   `json:"available"`
}

type RideStatus string

const (
	RideActive    RideStatus = "active"
	RideEnded     RideStatus = "ended"
	RideCancelled RideStatus = "cancelled"
)

// Ride is a single driver-offered leg between two locations.
type Ride struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"owner_id"`
	VehicleNumber  string     `json:"vehicle_number"`
	Category       string     `json:"category"`
	Origin         string     `json:"origin"`
	Destination    string     `json:"destination"`
	OfferedSeats   int        `json:"offered_seats"`
	RemainingSeats int        `json:"remaining_seats"`
	Status         RideStatus `json:"status"`
	OfferedAt      time.Time  `json:"offered_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (r *Ride) Active() bool { return r.Status == RideActive }

// Selection records seats reserved by a rider on one ride.
type Selection struct {
	RiderID    string    `json:"rider_id"`
	RideID     string    `json:"ride_id"`
	Seats      int       `json:"seats"`
	SelectedAt time.Time `json:"selected_at"`
}

type UserStats struct {
	UserID       string `json:"user_id"`
	OfferedRides int    `json:"offered_rides"`
	TakenRides   int    `json:"taken_rides"`
}

type EventType string

const (
	EventRideOffered   EventType = "ride_offered"
	EventRideSelected  EventType = "ride_selected"
	EventRideEnded     EventType = "ride_ended"
	EventRideCancelled EventType = "ride_cancelled"
)

// RideEvent is emitted after every successful registry mutation. UserID is the
// ride owner except for EventRideSelected, where it is the rider.
type RideEvent struct {
	Type        EventType `json:"type"`
	RideID      string    `json:"ride_id"`
	UserID      string    `json:"user_id"`
	Seats       int       `json:"seats,omitempty"`
	Origin      string    `json:"origin,omitempty"`
	Destination string    `json:"destination,omitempty"`
	At          time.Time `json:"at"`
}
