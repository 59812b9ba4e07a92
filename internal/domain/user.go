package domain

import "time"

// Account roles
const (
	RoleUser      = "user"
	RoleEditor    = "editor"
	RoleAuthority = "authority"
	RoleAdmin     = "admin"
)

// User Model
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`                                   // Primary key
	Email       string    `gorm:"size:100;uniqueIndex;not null" json:"email"`             // Unique e-mail
	Password    string    `gorm:"size:200;not null" json:"-"`                             // Hashed password
	Alias       *string   `gorm:"size:50" json:"alias"`                                   // Optional display alias
	Description string    `gorm:"type:text" json:"description"`                           // Free-text bio
	Role        string    `gorm:"size:20;not null;default:user" json:"role"`              // user, editor, authority or admin
	RFID        *string   `gorm:"column:rfid;size:100;uniqueIndex" json:"rfid,omitempty"` // Bound RFID tag
	CreatedAt   time.Time `json:"created_at"`                                             // Creation timestamp
	UpdatedAt   time.Time `json:"updated_at"`                                             // Update timestamp
}

// IsEditor reports whether the user may manage roles and time adjustments
func (u *User) IsEditor() bool {
	return u.Role == RoleEditor || u.Role == RoleAdmin
}

// IsAuthority reports whether the user holds authority rights
func (u *User) IsAuthority() bool {
	return u.Role == RoleAuthority || u.Role == RoleAdmin
}

// DisplayName returns the alias when set, the e-mail otherwise
func (u *User) DisplayName() string {
	if u.Alias != nil && *u.Alias != "" {
		return *u.Alias
	}
	return u.Email
}
