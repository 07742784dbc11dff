package businessflow

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/amirphl/safelink/models"
	"github.com/amirphl/safelink/repository"
)

type fakeShortLinkRepo struct {
	mu     sync.Mutex
	links  []*models.ShortLink
	nextID uint

	// taken codes make Save fail with ErrDuplicateCode
	taken map[string]bool
	err   error

	saveCalls int
}

var _ repository.ShortLinkRepository = (*fakeShortLinkRepo)(nil)

func newFakeShortLinkRepo(links ...*models.ShortLink) *fakeShortLinkRepo {
	r := &fakeShortLinkRepo{taken: map[string]bool{}}
	for _, l := range links {
		r.nextID++
		l.ID = r.nextID
		r.links = append(r.links, l)
	}
	return r
}

func (r *fakeShortLinkRepo) ByFilter(ctx context.Context, filter models.ShortLinkFilter, orderBy string, limit, offset int) ([]*models.ShortLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ShortLink
	for _, l := range r.links {
		if filter.Code != nil && l.Code != *filter.Code {
			continue
		}
		out = append(out, l)
	}
	return out, r.err
}

func (r *fakeShortLinkRepo) Save(ctx context.Context, link *models.ShortLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCalls++
	if r.err != nil {
		return r.err
	}
	if r.taken[link.Code] || r.hasCode(link.Code) {
		return repository.ErrDuplicateCode
	}
	r.nextID++
	link.ID = r.nextID
	link.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.links = append(r.links, link)
	return nil
}

func (r *fakeShortLinkRepo) SaveBatch(ctx context.Context, links []*models.ShortLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, l := range links {
		if r.taken[l.Code] || r.hasCode(l.Code) {
			return repository.ErrDuplicateCode
		}
	}
	for _, l := range links {
		r.nextID++
		l.ID = r.nextID
		r.links = append(r.links, l)
	}
	return nil
}

func (r *fakeShortLinkRepo) Exists(ctx context.Context, filter models.ShortLinkFilter) (bool, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	return len(rows) > 0, err
}

func (r *fakeShortLinkRepo) ByCode(ctx context.Context, code string) (*models.ShortLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, l := range r.links {
		if l.Code == code {
			return l, nil
		}
	}
	return nil, nil
}

func (r *fakeShortLinkRepo) IncrementClickCount(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.ID == id {
			l.ClickCount++
		}
	}
	return nil
}

func (r *fakeShortLinkRepo) hasCode(code string) bool {
	return slices.ContainsFunc(r.links, func(l *models.ShortLink) bool { return l.Code == code })
}

type fakeClickRepo struct {
	mu      sync.Mutex
	clicks  []*models.ShortLinkClick
	listed  []*models.ShortLinkClick
	saveErr error

	from, to time.Time
}

var _ repository.ShortLinkClickRepository = (*fakeClickRepo)(nil)

func (r *fakeClickRepo) Save(ctx context.Context, click *models.ShortLinkClick) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	click.ID = uint(len(r.clicks) + 1)
	r.clicks = append(r.clicks, click)
	return nil
}

func (r *fakeClickRepo) SaveBatch(ctx context.Context, clicks []*models.ShortLinkClick) error {
	for _, c := range clicks {
		if err := r.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeClickRepo) ListWithShortLinkBetween(ctx context.Context, from, to time.Time) ([]*models.ShortLinkClick, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.from, r.to = from, to
	return r.listed, nil
}
