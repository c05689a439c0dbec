package http

import "blog-service/internal/domain"

const dateLayout = "2006-01-02T15:04:05.000Z07:00"

type UserResponse struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Blogs []string `json:"blogs"`
}

type BlogResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Desc  string `json:"desc"`
	Img   string `json:"img"`
	User  string `json:"user"`
	Date  string `json:"date"`
}

// UserBlogsResponse is a user whose blogs are populated.
type UserBlogsResponse struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Email string         `json:"email"`
	Blogs []BlogResponse `json:"blogs"`
}

func userToResponse(user *domain.User) UserResponse {
	blogs := user.Blogs
	if blogs == nil {
		blogs = []string{}
	}
	return UserResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Blogs: blogs,
	}
}

func blogToResponse(blog *domain.Blog) BlogResponse {
	return BlogResponse{
		ID:    blog.ID,
		Title: blog.Title,
		Desc:  blog.Desc,
		Img:   blog.Img,
		User:  blog.UserID,
		Date:  blog.Date.UTC().Format(dateLayout),
	}
}

func userWithBlogsToResponse(user *domain.UserWithBlogs) UserBlogsResponse {
	resp := UserBlogsResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Blogs: make([]BlogResponse, len(user.BlogRecords)),
	}
	for i := range user.BlogRecords {
		resp.Blogs[i] = blogToResponse(&user.BlogRecords[i])
	}
	return resp
}
