package businessflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/amirphl/safelink/app/dto"
	"github.com/amirphl/safelink/app/services"
	"github.com/amirphl/safelink/models"
	"github.com/amirphl/safelink/utils"
	"go.uber.org/zap"
)

var staticPageTitles = map[string]string{
	"about":      "About Us",
	"contact":    "Contact Us",
	"privacy":    "Privacy Policy",
	"disclaimer": "Disclaimer",
	"terms":      "Terms and Conditions",
}

// BlogFlow builds the pages of the blog around the content source
type BlogFlow interface {
	Site(ctx context.Context) dto.SiteInfo
	Home(ctx context.Context, pageToken string) (*dto.HomePage, error)
	Category(ctx context.Context, label, pageToken string) (*dto.CategoryPage, error)
	Post(ctx context.Context, id string, gate *dto.GatePage) (*dto.PostPage, error)
	StaticPage(ctx context.Context, slug string) (*dto.StaticPage, error)
}

// BlogSettings holds the site level presentation settings
type BlogSettings struct {
	SiteTitle     string
	AdsenseClient string
	ContactEmail  string
}

type BlogFlowImpl struct {
	content  services.ContentSource
	markup   *services.ContentMarkup
	settings BlogSettings
	logger   *zap.Logger
}

func NewBlogFlow(content services.ContentSource, markup *services.ContentMarkup, settings BlogSettings, logger *zap.Logger) BlogFlow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlogFlowImpl{content: content, markup: markup, settings: settings, logger: logger}
}

// Site returns the shared page data. Content source failures degrade to the configured title.
func (f *BlogFlowImpl) Site(ctx context.Context) dto.SiteInfo {
	site := dto.SiteInfo{
		Title:         f.settings.SiteTitle,
		AdsenseClient: f.settings.AdsenseClient,
		ContactEmail:  f.settings.ContactEmail,
		Year:          utils.UTCNow().Year(),
	}

	if blog, err := f.content.GetBlogMetadata(ctx); err != nil {
		f.logger.Warn("failed to load blog metadata", zap.Error(err))
	} else {
		if site.Title == "" {
			site.Title = blog.Name
		}
		site.Description = blog.Description
	}

	if list, err := f.content.ListPosts(ctx, "", ""); err != nil {
		f.logger.Warn("failed to load categories", zap.Error(err))
	} else {
		site.Categories = collectLabels(list.Items)
	}

	return site
}

func (f *BlogFlowImpl) Home(ctx context.Context, pageToken string) (*dto.HomePage, error) {
	list, err := f.content.ListPosts(ctx, strings.TrimSpace(pageToken), "")
	if err != nil {
		return nil, contentError(err)
	}

	page := &dto.HomePage{
		Site:          f.Site(ctx),
		NextPageToken: list.NextPageToken,
	}
	items := list.Items
	if pageToken == "" && len(items) > 0 {
		hero := ToPostCard(items[0], utils.HeroExcerptLength)
		page.Hero = &hero
		items = items[1:]
	}
	page.Posts = toPostCards(items)
	return page, nil
}

func (f *BlogFlowImpl) Category(ctx context.Context, label, pageToken string) (*dto.CategoryPage, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, NewBusinessError("CATEGORY_NOT_FOUND", "Category not found", ErrPageNotFound)
	}

	list, err := f.content.ListPosts(ctx, strings.TrimSpace(pageToken), label)
	if err != nil {
		return nil, contentError(err)
	}

	return &dto.CategoryPage{
		Site:          f.Site(ctx),
		Label:         label,
		Posts:         toPostCards(list.Items),
		NextPageToken: list.NextPageToken,
	}, nil
}

// Post renders one article. gate is attached as is when the page hosts the link gate.
func (f *BlogFlowImpl) Post(ctx context.Context, id string, gate *dto.GatePage) (*dto.PostPage, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, NewBusinessError("POST_NOT_FOUND", "Post not found", ErrPostNotFound)
	}

	post, err := f.content.GetPost(ctx, id)
	if err != nil {
		return nil, contentError(err)
	}

	image := services.FirstImage(post.Content)
	if image == "" && len(post.Images) > 0 {
		image = post.Images[0].URL
	}

	return &dto.PostPage{
		Site:      f.Site(ctx),
		ID:        post.ID,
		Title:     post.Title,
		Body:      f.markup.Body(post.Content),
		Image:     image,
		Labels:    post.Labels,
		Author:    post.Author.DisplayName,
		Published: post.Published,
		Gate:      gate,
	}, nil
}

func (f *BlogFlowImpl) StaticPage(ctx context.Context, slug string) (*dto.StaticPage, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	title, ok := staticPageTitles[slug]
	if !ok {
		return nil, NewBusinessError("PAGE_NOT_FOUND", "Page not found", ErrPageNotFound)
	}
	return &dto.StaticPage{Site: f.Site(ctx), Slug: slug, Title: title}, nil
}

func contentError(err error) error {
	switch {
	case errors.Is(err, ErrPostNotFound):
		return NewBusinessError("POST_NOT_FOUND", "Post not found", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, ErrContentSource):
		return NewBusinessError("CONTENT_SOURCE_FAILED", "Failed to load content. Please try again.", err)
	default:
		return NewBusinessError("CONTENT_SOURCE_FAILED", "Failed to load content. Please try again.", fmt.Errorf("%w: %w", ErrContentSource, err))
	}
}

func toPostCards(posts []models.Post) []dto.PostCard {
	cards := make([]dto.PostCard, 0, len(posts))
	for _, p := range posts {
		cards = append(cards, ToPostCard(p, utils.ExcerptLength))
	}
	return cards
}

func collectLabels(posts []models.Post) []string {
	var labels []string
	for _, p := range posts {
		for _, l := range p.Labels {
			if !slices.Contains(labels, l) {
				labels = append(labels, l)
			}
		}
	}
	slices.Sort(labels)
	return labels
}
