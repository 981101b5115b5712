// Package model defines the data structures used throughout the application.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Role is the authorization level of an account.
type Role string

const (
	RoleStudent    Role = "student"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superAdmin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// CanManageRoles reports whether an account with role r may change other accounts' roles.
func (r Role) CanManageRoles() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Gender is optional profile metadata. The empty value means "not set".
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// DefaultAvatar is assigned to accounts that never uploaded one.
const DefaultAvatar = "https://default-avatar-url.com/avatar.png"

// User is an account record.
//
// ACCOUNT KINDS:
// A record is either a password account (PasswordHash set, CredentialAccount
// false) or a federated account (CredentialAccount true, no PasswordHash,
// ExternalIdentityID set). The flag name is historical: "credential" refers
// to the third-party credential the account was created from.
//
// PasswordHash and ExternalIdentityID carry json:"-" so a User can be written
// to a response without leaking them.
type User struct {
	ID                  string                  `json:"id"                      db:"id"`
	Username            string                  `json:"username"                db:"username"`
	Email               string                  `json:"email"                   db:"email"`
	PasswordHash        string                  `json:"-"                       db:"password_hash"`
	Role                Role                    `json:"role"                    db:"role"`
	Verified            bool                    `json:"verified"                db:"verified"`
	CredentialAccount   bool                    `json:"credentialAccount"       db:"credential_account"`
	ExternalIdentityID  string                  `json:"-"                       db:"external_identity_id"`
	Gender              Gender                  `json:"gender,omitempty"        db:"gender"`
	ClassGrade          string                  `json:"classGrade,omitempty"    db:"class_grade"`
	SchoolName          string                  `json:"schoolName,omitempty"    db:"school_name"`
	Age                 int                     `json:"age,omitempty"           db:"age"`
	Bio                 string                  `json:"bio"                     db:"bio"`
	Avatar              string                  `json:"avatar"                  db:"avatar"`
	Notifications       NotificationPreferences `json:"notificationPreferences" db:"notification_preferences"`
	Badges              BadgeData               `json:"badgeData"               db:"badge_data"`
	PreferredCategories []string                `json:"preferredCategories"     db:"-"`
	LastLogin           *time.Time              `json:"lastLogin,omitempty"     db:"last_login"`
	CreatedAt           time.Time               `json:"createdAt"               db:"created_at"`
	UpdatedAt           time.Time               `json:"updatedAt"               db:"updated_at"`
}

// IsFederated reports whether the account signs in through an identity provider.
func (u *User) IsFederated() bool {
	return u.CredentialAccount
}

// PublicProfile is what anyone may see about another user.
type PublicProfile struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Role       Role      `json:"role"`
	Avatar     string    `json:"avatar"`
	Bio        string    `json:"bio"`
	ClassGrade string    `json:"classGrade,omitempty"`
	SchoolName string    `json:"schoolName,omitempty"`
	Badges     BadgeData `json:"badgeData"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Public strips private fields (email, verification state, preferences).
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:         u.ID,
		Username:   u.Username,
		Role:       u.Role,
		Avatar:     u.Avatar,
		Bio:        u.Bio,
		ClassGrade: u.ClassGrade,
		SchoolName: u.SchoolName,
		Badges:     u.Badges,
		CreatedAt:  u.CreatedAt,
	}
}

// NotificationPreferences controls which emails a user receives.
type NotificationPreferences struct {
	NewAnswers bool `json:"newAnswers"`
	Upvotes    bool `json:"upvotes"`
	Badges     bool `json:"badges"`
}

// DefaultNotifications has every notification switched on.
func DefaultNotifications() NotificationPreferences {
	return NotificationPreferences{NewAnswers: true, Upvotes: true, Badges: true}
}

// Value stores the preferences as a JSON document column.
func (n NotificationPreferences) Value() (driver.Value, error) {
	return jsonValue(n)
}

// Scan reads a JSON document column.
func (n *NotificationPreferences) Scan(src any) error {
	return jsonScan(src, n)
}

// BadgeData tracks gamification progress.
type BadgeData struct {
	BadgesEarned int            `json:"badgesEarned"`
	BadgeLevels  []string       `json:"badgeLevels"`
	Progress     map[string]int `json:"progress"`
}

func (b BadgeData) Value() (driver.Value, error) {
	if b.BadgeLevels == nil {
		b.BadgeLevels = []string{}
	}
	if b.Progress == nil {
		b.Progress = map[string]int{}
	}
	return jsonValue(b)
}

func (b *BadgeData) Scan(src any) error {
	return jsonScan(src, b)
}

func jsonValue(v any) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func jsonScan(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		return json.Unmarshal([]byte(v), dst)
	case []byte:
		return json.Unmarshal(v, dst)
	default:
		return fmt.Errorf("model: cannot scan %T into %T", src, dst)
	}
}
