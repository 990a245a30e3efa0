package model

import "time"

// ResetToken is the value stored under reset:{digest}.  The raw token only
// ever exists in the email sent to the customer.
type ResetToken struct {
	ProjectID string    `json:"projectId"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}
