package models

import "time"

type AccountRole string

const (
	AccountRoleUser      AccountRole = "user"
	AccountRoleModerator AccountRole = "moderator"
	AccountRoleAdmin     AccountRole = "admin"
)

type Account struct {
	ID          string
	Username    string
	UploadToken string
	Role        AccountRole
	Banned      bool
	BanReason   *string
	ImageCount  int64
	KnownIPs    []string
	DiscordLink bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (a Account) IsAdmin() bool {
	return a.Role == AccountRoleAdmin
}

func (a Account) BanMessage() string {
	if a.BanReason == nil {
		return ""
	}
	return *a.BanReason
}
