package session

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UserID is the service-side user identifier. The service sends either a
// JSON number or a string; both decode to the same textual form.
type UserID string

func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

// User is the profile record returned by the auth endpoints.
type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// DisplayName prefers the full name and falls back to the username.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	if u.Username != "" {
		return u.Username
	}
	return "User"
}

func (u User) identified() bool {
	return u.ID != "" || u.Username != "" || u.Email != ""
}

// Session is the authenticated identity bound to this client instance.
// User is nil exactly when Token is empty.
type Session struct {
	Token string
	User  *User
}

// Anonymous reports whether no user is signed in.
func (s Session) Anonymous() bool {
	return s.Token == ""
}
