// Package model contains the domain entities shared by the service, the RPC
// client and the component models.
package model

import "fmt"

// UserID identifies a user. The zero value means "nobody".
type UserID int64

// Valid reports whether id refers to an actual user.
func (id UserID) Valid() bool { return id > 0 }

// UserRef is the public projection of a user embedded in other entities.
type UserRef struct {
	ID            UserID `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	DiscordID     string `json:"discord_id"`
}

// FullUsername renders username#discriminator.
func (u UserRef) FullUsername() string {
	if u.Discriminator == "" {
		return u.Username
	}
	return fmt.Sprintf("%s#%s", u.Username, u.Discriminator)
}

// ProfilePath is the site path of the user's profile page.
func (u UserRef) ProfilePath() string {
	return "/u/" + u.DiscordID
}
