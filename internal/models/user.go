package models

import "time"

type User struct {
	ID            string     `json:"id" db:"id"`
	WalletAddress string     `json:"wallet_address" db:"wallet_address"`
	Username      string     `json:"username,omitempty" db:"username"`
	FarcasterID   string     `json:"farcaster_id,omitempty" db:"farcaster_id"`
	TokenBalance  int64      `json:"token_balance"`
	LastLogin     *time.Time `json:"last_login,omitempty" db:"last_login"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// UserPatch enumerates the profile fields a user may change. Nil means
// leave unchanged.
type UserPatch struct {
	Username    *string `json:"username" validate:"omitempty,min=2,max=40"`
	FarcasterID *string `json:"farcaster_id" validate:"omitempty,max=80"`
}

// Empty reports whether the patch would change nothing.
func (p *UserPatch) Empty() bool {
	return p.Username == nil && p.FarcasterID == nil
}
