package principal

import "time"

// Principal is a registered identity that owns calculation records. Username
// and Email are globally unique; PasswordHash never crosses the API boundary.
type Principal struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
