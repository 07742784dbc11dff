package testing

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/amirphl/safelink/models"
)

// ErrFakeNotFound is what FakeContentSource returns for unknown posts unless NotFoundErr is set
var ErrFakeNotFound = errors.New("fake: post not found")

// FakeContentSource is an in-memory content source.
// PickRandomPostID walks the posts in order so consecutive picks differ.
type FakeContentSource struct {
	mu sync.Mutex

	Blog  models.BlogInfo
	Posts []models.Post

	// Err, when set, is returned by every call
	Err error
	// PickErr, when set, is returned by PickRandomPostID only
	PickErr error
	// NotFoundErr is returned by GetPost for unknown ids
	NotFoundErr error

	next  int
	Calls map[string]int
}

// NewFakeContentSource creates a fake serving the given posts
func NewFakeContentSource(posts ...models.Post) *FakeContentSource {
	return &FakeContentSource{
		Blog:  models.BlogInfo{ID: "blog-1", Name: "Test Blog", Description: "A blog for tests"},
		Posts: posts,
		Calls: make(map[string]int),
	}
}

func (f *FakeContentSource) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls[name]++
	return f.Err
}

// CallCount returns how often the named method was called
func (f *FakeContentSource) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[name]
}

func (f *FakeContentSource) GetBlogMetadata(ctx context.Context) (*models.BlogInfo, error) {
	if err := f.record("GetBlogMetadata"); err != nil {
		return nil, err
	}
	blog := f.Blog
	return &blog, nil
}

func (f *FakeContentSource) ListPosts(ctx context.Context, pageToken, label string) (*models.PostList, error) {
	if err := f.record("ListPosts"); err != nil {
		return nil, err
	}
	list := &models.PostList{}
	for _, p := range f.Posts {
		if label == "" || slices.Contains(p.Labels, label) {
			list.Items = append(list.Items, p)
		}
	}
	return list, nil
}

func (f *FakeContentSource) GetPost(ctx context.Context, id string) (*models.Post, error) {
	if err := f.record("GetPost"); err != nil {
		return nil, err
	}
	for _, p := range f.Posts {
		if p.ID == id {
			post := p
			return &post, nil
		}
	}
	if f.NotFoundErr != nil {
		return nil, f.NotFoundErr
	}
	return nil, ErrFakeNotFound
}

func (f *FakeContentSource) PickRandomPostID(ctx context.Context) (string, error) {
	if err := f.record("PickRandomPostID"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PickErr != nil {
		return "", f.PickErr
	}
	if len(f.Posts) == 0 {
		return "", errors.New("fake: no posts")
	}
	id := f.Posts[f.next%len(f.Posts)].ID
	f.next++
	return id, nil
}

// SamplePosts returns n posts with distinct ids, labels and image markup
func SamplePosts(n int) []models.Post {
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	posts := make([]models.Post, 0, n)
	for i := range n {
		id := string(rune('a'+i%26)) + "-post"
		posts = append(posts, models.Post{
			ID:        id,
			Title:     "Post " + id,
			Content:   `<p>Body of <b>` + id + `</b></p><img src="https://img.example.com/` + id + `.png">`,
			Published: base.Add(-time.Duration(i) * time.Hour),
			Updated:   base.Add(-time.Duration(i) * time.Hour),
			URL:       "https://blog.example.com/" + id,
			Labels:    []string{"news", "label-" + id},
			Author:    models.PostAuthor{DisplayName: "Author"},
		})
	}
	return posts
}
