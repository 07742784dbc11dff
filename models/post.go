package models

import "time"

// BlogInfo is the blog metadata returned by the content API
type BlogInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Published   time.Time `json:"published"`
	Updated     time.Time `json:"updated"`
	Posts       struct {
		TotalItems int `json:"totalItems"`
	} `json:"posts"`
}

// PostAuthor is the author block of a post
type PostAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	URL         string `json:"url"`
	Image       struct {
		URL string `json:"url"`
	} `json:"image"`
}

// PostImage is an image attached to a post
type PostImage struct {
	URL string `json:"url"`
}

// Post is one article from the content API
type Post struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	Published time.Time   `json:"published"`
	Updated   time.Time   `json:"updated"`
	URL       string      `json:"url"`
	SelfLink  string      `json:"selfLink"`
	Author    PostAuthor  `json:"author"`
	Labels    []string    `json:"labels,omitempty"`
	Images    []PostImage `json:"images,omitempty"`
}

// PostList is one page of posts
type PostList struct {
	Items         []Post `json:"items"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}
