package domain

import "time"

// Blog is a post owned by exactly one User.
type Blog struct {
	ID     string
	Title  string
	Desc   string
	Img    string
	UserID string
	Date   time.Time
}

// UserWithBlogs is a User whose blog ids have been resolved to full records.
type UserWithBlogs struct {
	User
	BlogRecords []Blog
}
