package refreshtoken

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Kind string

const (
	KindRefresh Kind = "refresh"
	// KindHandoff marks the short-lived one-shot tokens used to pass a
	// social login back to the client. They share storage and cleanup with
	// refresh tokens but can never be rotated.
	KindHandoff Kind = "handoff"
)

type RefreshToken struct {
	ID            string      `json:"id" gorm:"primaryKey;size:36"`
	UserID        string      `json:"user_id" gorm:"not null;index;size:64"`
	TokenHash     string      `json:"-" gorm:"uniqueIndex;size:64;not null"`
	Kind          Kind        `json:"kind" gorm:"size:16;not null"`
	IPAddress     ClientValue `json:"ip_address" gorm:"size:45"`
	UserAgent     ClientValue `json:"user_agent" gorm:"size:500"`
	ExpiresAt     time.Time   `json:"expires_at" gorm:"not null;index"`
	IsUsed        bool        `json:"is_used" gorm:"not null"`
	IsRevoked     bool        `json:"is_revoked" gorm:"not null;index"`
	ParentToken   *string     `json:"parent_token,omitempty" gorm:"index;size:36"`
	RotationCount int         `json:"rotation_count" gorm:"not null"`
	CreatedAt     time.Time   `json:"created_at"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// ExpiredAt reports whether the token is dead at now. A token expiring
// exactly at now is expired.
func (t *RefreshToken) ExpiredAt(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

func (t *RefreshToken) IsRoot() bool {
	return t.ParentToken == nil
}

func (t *RefreshToken) clone() *RefreshToken {
	c := *t
	if t.ParentToken != nil {
		p := *t.ParentToken
		c.ParentToken = &p
	}
	return &c
}

// ClientValue is a piece of client metadata that may not have been captured.
// The zero value is absent; an empty string is never a present value.
type ClientValue struct {
	value string
	set   bool
}

func Some(v string) ClientValue {
	if v == "" {
		return ClientValue{}
	}
	return ClientValue{value: v, set: true}
}

func None() ClientValue {
	return ClientValue{}
}

func (c ClientValue) Get() (string, bool) {
	return c.value, c.set
}

func (c ClientValue) IsSet() bool {
	return c.set
}

func (c ClientValue) String() string {
	return c.value
}

func (c ClientValue) Value() (driver.Value, error) {
	if !c.set {
		return nil, nil
	}
	return c.value, nil
}

func (c *ClientValue) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = ClientValue{}
	case string:
		*c = Some(v)
	case []byte:
		*c = Some(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ClientValue", src)
	}
	return nil
}

func (ClientValue) GormDataType() string {
	return "string"
}

func (c ClientValue) MarshalJSON() ([]byte, error) {
	if !c.set {
		return []byte("null"), nil
	}
	return json.Marshal(c.value)
}

func (c *ClientValue) UnmarshalJSON(data []byte) error {
	var v *string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == nil {
		*c = ClientValue{}
		return nil
	}
	*c = Some(*v)
	return nil
}

// TokenMetadata describes the client presenting or receiving a token.
type TokenMetadata struct {
	IPAddress ClientValue
	UserAgent ClientValue
	SessionID string
}

func NewMetadata(ip, userAgent string) TokenMetadata {
	return TokenMetadata{
		IPAddress: Some(ip),
		UserAgent: Some(userAgent),
	}
}

// TokenPair is the only artifact handed back to callers.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}
