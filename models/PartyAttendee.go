package models

import (
	"time"
)

type PartyAttendee struct {
	ID       uint      `json:"id" gorm:"primaryKey"`
	PartyID  uint      `json:"partyID" gorm:"not null;index:idx_party_attendee,unique"`
	Party    Party     `json:"party,omitempty" gorm:"foreignKey:PartyID;constraint:OnDelete:CASCADE"`
	UserID   uint      `json:"userID" gorm:"not null;index:idx_party_attendee,unique"`
	User     User      `json:"user,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	JoinedAt time.Time `json:"joinedAt" gorm:"autoCreateTime"`
}

func (PartyAttendee) TableName() string {
	return "party_attendees"
}
