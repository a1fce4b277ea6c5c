// Package api contains API contract definitions for the WorkPulse dashboard.
// Version v1 represents the current stable API version.
package api

import (
	"workpulse/pkg/contracts/domain"
)

// ClientsOnDateRequest represents the query for the clients-on-date
// aggregate. The date arrives as a query parameter.
type ClientsOnDateRequest struct {
	Date string `json:"date" query:"date" validate:"required,datetime=2006-01-02"`
}

// ClientsOnDateResponse represents the clients-on-date result
type ClientsOnDateResponse struct {
	Date    string `json:"date"`
	Clients int64  `json:"clients"`
}

// ReloadResponse represents the result of a forced reload
type ReloadResponse struct {
	Reloaded bool             `json:"reloaded"`
	Snapshot *domain.Snapshot `json:"snapshot"`
}
