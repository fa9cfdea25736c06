package auth

import (
	"time"

	"github.com/uptrace/bun"
)

// Account is the user record owned by the user management service. We only
// read the display name from it.
type Account struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            int64  `bun:"id,pk,autoincrement" json:"id"`
	Name          string `bun:"name_user,notnull" json:"name_user"`
}

// Credential is the authentication record for one account
type Credential struct {
	bun.BaseModel  `bun:"table:credentials,alias:cred"`
	ID             int64      `bun:"id,pk,autoincrement" json:"id"`
	UserID         int64      `bun:"user_id,notnull" json:"user_id"`
	User           *Account   `bun:"rel:belongs-to,join:user_id=id" json:"-"`
	Email          string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash   string     `bun:"password_hash,notnull" json:"-"`
	Disabled       bool       `bun:"disabled,notnull" json:"disabled"`
	ActivationCode string     `bun:"activation_code,notnull" json:"-"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsPending reports whether the credential still waits for activation
func (c *Credential) IsPending() bool {
	return c != nil && c.Disabled
}

// DisplayName returns the joined account name, if any
func (c *Credential) DisplayName() string {
	if c == nil || c.User == nil {
		return ""
	}
	return c.User.Name
}

// Summary strips secrets from the record
func (c *Credential) Summary() *CredentialSummary {
	if c == nil {
		return nil
	}
	return &CredentialSummary{
		ID:       c.ID,
		UserID:   c.UserID,
		Email:    c.Email,
		Disabled: c.Disabled,
	}
}

// CredentialSummary holds the public fields of a Credential
type CredentialSummary struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"user_id"`
	Email    string `json:"email"`
	Disabled bool   `json:"disabled"`
}

// AccessToken is the login response
type AccessToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	NameUser    string    `json:"name_user"`
	UserID      int64     `json:"user_id"`
	EmailUser   string    `json:"email_user"`
	ExpiresAt   time.Time `json:"expires_at"`
}
