package events

import (
	"time"
)

// PackageCreatedEvent is published for every warehouse whose package command
// was accepted by the donation-records service.
type PackageCreatedEvent struct {
	EventID     string    `json:"event_id"`
	SessionID   string    `json:"session_id"`
	RequestID   int       `json:"request_id"`
	WarehouseID int       `json:"warehouse_id"`
	PackageName string    `json:"package_name"`
	Quantity    int       `json:"quantity"`
	Timestamp   time.Time `json:"timestamp"`
}

// AssemblyStartedEvent is published once per session as soon as at least one
// package was created.
type AssemblyStartedEvent struct {
	EventID     string    `json:"event_id"`
	SessionID   string    `json:"session_id"`
	RequestID   int       `json:"request_id"`
	RequesterCI string    `json:"requester_ci"`
	Timestamp   time.Time `json:"timestamp"`
}

// PackageDeliveredEvent arrives from the logistics side once a package reached
// its destination.
type PackageDeliveredEvent struct {
	EventID     string    `json:"event_id"`
	SessionID   string    `json:"session_id"`
	WarehouseID int       `json:"warehouse_id"`
	Timestamp   time.Time `json:"timestamp"`
}
