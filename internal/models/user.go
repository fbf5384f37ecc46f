package models

type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	PasswordHash string `json:"-"` // don’t expose hash
}

// Profile is what the identity layer exposes about the signed-in user.
type Profile struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

func (u User) Profile() Profile {
	name := u.DisplayName
	if name == "" {
		name = u.Username
	}
	return Profile{DisplayName: name, Email: u.Email}
}
