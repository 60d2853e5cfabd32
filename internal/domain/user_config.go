package domain

import "time"

type Settings struct {
	Theme         string `json:"theme"`
	Language      string `json:"language"`
	Notifications bool   `json:"notifications"`
}

func DefaultSettings() Settings {
	return Settings{
		Theme:         "system",
		Language:      "en",
		Notifications: true,
	}
}

type Contact struct {
	Login       string    `json:"login"`
	DisplayName string    `json:"display_name,omitempty"`
	Avatar      string    `json:"avatar,omitempty"`
	AddedAt     time.Time `json:"added_at"`
}

// UserConfig is config/user.json: settings plus the contact list.
type UserConfig struct {
	Settings    Settings  `json:"settings"`
	Contacts    []Contact `json:"contacts"`
	LastUpdated time.Time `json:"last_updated"`
}

func NewUserConfig() UserConfig {
	return UserConfig{
		Settings:    DefaultSettings(),
		Contacts:    []Contact{},
		LastUpdated: time.Now().UTC(),
	}
}

func (c *UserConfig) HasContact(login string) bool {
	login = NormalizeLogin(login)
	for _, ct := range c.Contacts {
		if ct.Login == login {
			return true
		}
	}
	return false
}

// AddContact is a no-op returning false when the login is already a contact.
func (c *UserConfig) AddContact(who Identity) bool {
	if c.HasContact(who.Login) {
		return false
	}
	now := time.Now().UTC()
	c.Contacts = append(c.Contacts, Contact{
		Login:       NormalizeLogin(who.Login),
		DisplayName: who.DisplayName,
		Avatar:      who.Avatar,
		AddedAt:     now,
	})
	c.LastUpdated = now
	return true
}

func (c *UserConfig) RemoveContact(login string) bool {
	login = NormalizeLogin(login)
	for i, ct := range c.Contacts {
		if ct.Login == login {
			c.Contacts = append(c.Contacts[:i], c.Contacts[i+1:]...)
			c.LastUpdated = time.Now().UTC()
			return true
		}
	}
	return false
}
