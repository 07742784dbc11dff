package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/amirphl/safelink/models"
	"github.com/amirphl/safelink/utils"
)

// Content source error constants
var (
	ErrPostNotFound  = errors.New("post not found")
	ErrNoPosts       = errors.New("no posts available")
	ErrContentSource = errors.New("content source unavailable")
)

const defaultBloggerBaseURL = "https://www.googleapis.com/blogger/v3"

// ContentSource is the read-only view of the blog the gate runs on
type ContentSource interface {
	GetBlogMetadata(ctx context.Context) (*models.BlogInfo, error)
	ListPosts(ctx context.Context, pageToken, label string) (*models.PostList, error)
	GetPost(ctx context.Context, id string) (*models.Post, error)
	PickRandomPostID(ctx context.Context) (string, error)
}

// BloggerClientConfig configures the Blogger v3 REST client
type BloggerClientConfig struct {
	BaseURL         string
	BlogID          string
	APIKey          string
	Timeout         time.Duration
	RandomPoolPages int
}

type bloggerClient struct {
	cfg      BloggerClientConfig
	client   *http.Client
	randIntN func(int) int
}

// NewBloggerClient creates a content source backed by the Blogger v3 API
func NewBloggerClient(cfg BloggerClientConfig) ContentSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBloggerBaseURL
	}
	cfg.BaseURL = utils.NormalizeBaseURL(cfg.BaseURL)
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RandomPoolPages < 1 {
		cfg.RandomPoolPages = 1
	}
	return &bloggerClient{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		randIntN: rand.IntN,
	}
}

func (c *bloggerClient) GetBlogMetadata(ctx context.Context) (*models.BlogInfo, error) {
	var info models.BlogInfo
	if err := c.get(ctx, "/blogs/"+url.PathEscape(c.cfg.BlogID), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *bloggerClient) ListPosts(ctx context.Context, pageToken, label string) (*models.PostList, error) {
	q := url.Values{}
	q.Set("maxResults", strconv.Itoa(utils.BloggerPageSize))
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	if label != "" {
		q.Set("labels", label)
	}

	var list models.PostList
	if err := c.get(ctx, "/blogs/"+url.PathEscape(c.cfg.BlogID)+"/posts", q, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *bloggerClient) GetPost(ctx context.Context, id string) (*models.Post, error) {
	if id == "" {
		return nil, ErrPostNotFound
	}
	var post models.Post
	if err := c.get(ctx, "/blogs/"+url.PathEscape(c.cfg.BlogID)+"/posts/"+url.PathEscape(id), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *bloggerClient) PickRandomPostID(ctx context.Context) (string, error) {
	return pickRandomPostID(ctx, c, c.cfg.RandomPoolPages, c.randIntN)
}

func (c *bloggerClient) get(ctx context.Context, path string, q url.Values, out any) error {
	if q == nil {
		q = url.Values{}
	}
	q.Set("key", c.cfg.APIKey)
	endpoint := c.cfg.BaseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrContentSource, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrContentSource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrPostNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: blogger http status %d", ErrContentSource, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %v", ErrContentSource, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to decode blogger response: %v", ErrContentSource, err)
	}
	return nil
}

// pickRandomPostID samples one post id from the first pages of the listing
func pickRandomPostID(ctx context.Context, src ContentSource, pages int, randIntN func(int) int) (string, error) {
	var ids []string
	pageToken := ""
	for range max(pages, 1) {
		list, err := src.ListPosts(ctx, pageToken, "")
		if err != nil {
			return "", err
		}
		for _, p := range list.Items {
			if p.ID != "" {
				ids = append(ids, p.ID)
			}
		}
		if list.NextPageToken == "" {
			break
		}
		pageToken = list.NextPageToken
	}

	if len(ids) == 0 {
		return "", ErrNoPosts
	}
	return ids[randIntN(len(ids))], nil
}
