package models

import (
	"time"
)

type Friendship struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	RequesterID uint       `json:"requesterID" gorm:"not null;index:idx_friendship,unique"`
	Requester   User       `json:"requester,omitempty" gorm:"foreignKey:RequesterID;constraint:OnDelete:CASCADE"`
	AddresseeID uint       `json:"addresseeID" gorm:"not null;index:idx_friendship,unique"`
	Addressee   User       `json:"addressee,omitempty" gorm:"foreignKey:AddresseeID;constraint:OnDelete:CASCADE"`
	Status      string     `json:"status" gorm:"type:varchar(20);default:'pending'"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
	AcceptedAt  *time.Time `json:"acceptedAt"`
}

// Friendship status constants. Declined requests are deleted rather than
// kept around, so the column only ever holds pending or accepted.
const (
	FriendshipStatusPending  = "pending"
	FriendshipStatusAccepted = "accepted"
)

func (Friendship) TableName() string {
	return "friendships"
}
