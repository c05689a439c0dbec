package domain

import "time"

// User represents a registered author. Blogs holds the ids of the blogs the
// user owns, in the order they were created.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Blogs        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasBlog reports whether blogID is linked to the user.
func (u *User) HasBlog(blogID string) bool {
	for _, id := range u.Blogs {
		if id == blogID {
			return true
		}
	}
	return false
}
