package models

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Username      string         `json:"username" gorm:"type:varchar(50);uniqueIndex"`
	Email         string         `json:"email" gorm:"type:varchar(255);uniqueIndex"`
	Password      string         `json:"-"`
	Bio           string         `json:"bio" gorm:"type:text"`
	Location      string         `json:"location" gorm:"type:varchar(100)"`
	PushTokens    datatypes.JSON `json:"pushTokens"`
	HostedParties []Party        `json:"hostedParties,omitempty" gorm:"foreignKey:HostID;references:ID"`
}

// Custom JSON marshaling to flatten the PushTokens JSON column
func (u *User) MarshalJSON() ([]byte, error) {
	type Alias User
	aux := &struct {
		PushTokens []string `json:"pushTokens,omitempty"`
		*Alias
	}{
		PushTokens: []string{},
		Alias:      (*Alias)(u),
	}

	if u.PushTokens != nil {
		var pushTokens []string
		if err := json.Unmarshal(u.PushTokens, &pushTokens); err == nil {
			aux.PushTokens = pushTokens
		}
	}

	// HostedParties is excluded to prevent circular reference
	aux.Alias.HostedParties = nil

	return json.Marshal(aux)
}
