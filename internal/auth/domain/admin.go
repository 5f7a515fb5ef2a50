package domain

import "time"

// Admin is the operator identity carried by an admin API token.
type Admin struct {
	Subject   string    `json:"subject"`
	ExpiresAt time.Time `json:"expires_at"`
}
