package dto

import (
	"html/template"
	"time"
)

// SiteInfo is shared by every rendered page
type SiteInfo struct {
	Title         string
	Description   string
	AdsenseClient string
	ContactEmail  string
	Categories    []string
	Year          int
}

// PostCard is a post summary shown in listings
type PostCard struct {
	ID        string
	Title     string
	Excerpt   string
	Image     string
	Labels    []string
	Author    string
	Published time.Time
}

// HomePage is the landing page: the newest post as hero and the rest as a grid
type HomePage struct {
	Site          SiteInfo
	Hero          *PostCard
	Posts         []PostCard
	NextPageToken string
}

// CategoryPage lists the posts carrying one label
type CategoryPage struct {
	Site          SiteInfo
	Label         string
	Posts         []PostCard
	NextPageToken string
}

// PostPage renders one article, with the gate overlay when a gate is active
type PostPage struct {
	Site      SiteInfo
	ID        string
	Title     string
	Body      template.HTML
	Image     string
	Labels    []string
	Author    string
	Published time.Time
	Gate      *GatePage
}

// StaticPage is one of the fixed informational pages
type StaticPage struct {
	Site  SiteInfo
	Slug  string
	Title string
}

// ErrorPage is shown for any failure surfaced to a visitor
type ErrorPage struct {
	Site     SiteInfo
	Status   int
	Title    string
	Message  string
	RetryURL string
}
