package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Party visibility values
const (
	PartyVisibilityPublic  = "public"
	PartyVisibilityFriends = "friends"
	PartyVisibilityPrivate = "private"
)

type Party struct {
	gorm.Model
	HostID      uint      `json:"hostID" gorm:"not null;index"`
	Title       string    `json:"title" gorm:"type:varchar(100)"`
	Description string    `json:"description" gorm:"type:text"`
	Game        string    `json:"game" gorm:"type:varchar(100);index"`
	Capacity    int       `json:"capacity"`
	Location    string    `json:"location" gorm:"type:varchar(100)"`
	Address     string    `json:"address" gorm:"type:text"`
	Visibility  string    `json:"visibility" gorm:"type:varchar(20);default:'public';index"` // public, friends, private
	Date        time.Time `json:"date" gorm:"index"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Host        User      `json:"host" gorm:"foreignKey:HostID;references:ID"`

	// AttendeeCount is filled by list/detail queries, not a column
	AttendeeCount int64 `json:"attendeeCount" gorm:"->;-:migration"`
	// IsAttending is only set on detail fetches for authenticated callers
	IsAttending *bool `json:"isAttending,omitempty" gorm:"-"`
}

// Custom JSON marshaling so an unloaded host is omitted instead of
// serializing as a zero-value user
func (p *Party) MarshalJSON() ([]byte, error) {
	type Alias Party
	aux := &struct {
		Host *User `json:"host,omitempty"`
		*Alias
	}{
		Host:  nil,
		Alias: (*Alias)(p),
	}

	if p.Host.ID > 0 {
		hostCopy := p.Host
		hostCopy.HostedParties = nil
		aux.Host = &hostCopy
	}

	return json.Marshal(aux)
}
