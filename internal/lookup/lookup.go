// Package lookup answers the product-registration questions asked of the CA
// registry: the current record for a certificate number, a paginated search
// over the catalogue, and the autofill/expiry check run before a product is
// accepted.
//
// Duplicated certificate numbers are kept in storage; every read resolves
// them to the record with the latest expiry date, records without an expiry
// date ranking last.
package lookup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/Cemag-pcp/projeto-epi-sub000/internal/logging"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/registry"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/storage"
)

var (
	// ErrNotFound is returned by ByNumber when no record carries the number.
	ErrNotFound = errors.New("certificate not found")
	// ErrCertificateExpired is returned by Validate for a certificate whose
	// expiry date is in the past.
	ErrCertificateExpired = errors.New("certificate expired")
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	defaultCacheSize = 1024
	defaultCacheTTL  = 5 * time.Minute
)

// latestFirst ranks the duplicates of one certificate number.
const latestFirst = "CASE WHEN expiry_date IS NULL THEN 1 ELSE 0 END, expiry_date DESC, last_updated_at DESC"

// Options configures a Service.
type Options struct {
	// CacheSize bounds the ByNumber cache. Negative disables caching.
	CacheSize int
	CacheTTL  time.Duration
	Logger    zerolog.Logger
}

// Service reads the registry table of a storage repository.
type Service struct {
	db    *gorm.DB
	table string
	log   zerolog.Logger
	group singleflight.Group
	cache *expirable.LRU[string, cached]
}

// cached is a ByNumber result together with the batch stamp the table carried
// when it was read. An entry is served only while the stamp is unchanged.
type cached struct {
	rec   registry.Record
	stamp string
}

// New builds a Service over repo's connection pool. The pool stays owned by
// repo.
func New(repo storage.Repository, opts Options) (*Service, error) {
	log := logging.Component(opts.Logger, "lookup")
	db, err := openGorm(repo, log)
	if err != nil {
		return nil, err
	}
	s := &Service{db: db, table: repo.Table(), log: log}
	if opts.CacheSize >= 0 {
		size, ttl := opts.CacheSize, opts.CacheTTL
		if size == 0 {
			size = defaultCacheSize
		}
		if ttl <= 0 {
			ttl = defaultCacheTTL
		}
		s.cache = expirable.NewLRU[string, cached](size, nil, ttl)
	}
	return s, nil
}

// NormalizeNumber trims the number the way the feed stores it.
func NormalizeNumber(number string) string {
	return strings.TrimSpace(number)
}

// batchStamp identifies the registry contents: every load stamps its records
// with the batch start, so a new load changes MAX(last_updated_at).
func (s *Service) batchStamp(ctx context.Context) (string, error) {
	var stamp sql.NullString
	err := s.db.WithContext(ctx).
		Table(s.table).
		Select("MAX(last_updated_at)").
		Row().
		Scan(&stamp)
	if err != nil {
		return "", fmt.Errorf("lookup batch stamp: %w", err)
	}
	return stamp.String, nil
}

// ByNumber returns the latest record for number. Concurrent calls for the same
// number share one query; a caller that gives up does not cancel it for the
// others.
func (s *Service) ByNumber(ctx context.Context, number string) (registry.Record, error) {
	number = NormalizeNumber(number)
	if number == "" {
		return registry.Record{}, ErrNotFound
	}

	key := number
	var stamp string
	if s.cache != nil {
		var err error
		if stamp, err = s.batchStamp(ctx); err != nil {
			return registry.Record{}, err
		}
		if c, ok := s.cache.Get(number); ok {
			if c.stamp == stamp {
				return c.rec.Clone(), nil
			}
			s.cache.Remove(number)
		}
		key = stamp + "\x00" + number
	}

	ch := s.group.DoChan(key, func() (any, error) {
		var rec registry.Record
		err := s.db.WithContext(context.WithoutCancel(ctx)).
			Table(s.table).
			Where("certificate_number = ?", number).
			Order(latestFirst).
			Take(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", number, err)
		}
		if s.cache != nil {
			s.cache.Add(number, cached{rec: rec.Clone(), stamp: stamp})
		}
		return rec, nil
	})

	select {
	case <-ctx.Done():
		return registry.Record{}, fmt.Errorf("lookup %s: %w", number, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return registry.Record{}, res.Err
		}
		return res.Val.(registry.Record).Clone(), nil
	}
}

// Purge drops every cached record.
func (s *Service) Purge() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

// Query filters Search.
type Query struct {
	// Text matches the certificate number, equipment name, equipment
	// description and issuer name.
	Text string
	// Brand is a case-insensitive substring filter.
	Brand    string
	Page     int // 1-based
	PageSize int
}

func (q Query) normalized() Query {
	q.Text = strings.TrimSpace(q.Text)
	q.Brand = strings.TrimSpace(q.Brand)
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.PageSize <= 0:
		q.PageSize = DefaultPageSize
	case q.PageSize > MaxPageSize:
		q.PageSize = MaxPageSize
	}
	return q
}

// Page is one page of search results.
type Page struct {
	Items    []registry.Record `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// Search returns the latest record of every certificate number matching q,
// ordered by certificate number then expiry date descending.
func (s *Service) Search(ctx context.Context, q Query) (Page, error) {
	q = q.normalized()
	page := Page{Items: []registry.Record{}, Page: q.Page, PageSize: q.PageSize}

	if err := s.latest(ctx, q).Count(&page.Total).Error; err != nil {
		return Page{}, fmt.Errorf("search count: %w", err)
	}
	if page.Total == 0 {
		return page, nil
	}

	err := s.latest(ctx, q).
		Select(strings.Join(registry.Columns, ", ")).
		Order("certificate_number ASC, expiry_date DESC").
		Limit(q.PageSize).
		Offset((q.Page - 1) * q.PageSize).
		Find(&page.Items).Error
	if err != nil {
		return Page{}, fmt.Errorf("search: %w", err)
	}
	return page, nil
}

// latest selects the top ranked row per certificate number among the rows
// matching q.
func (s *Service) latest(ctx context.Context, q Query) *gorm.DB {
	db := s.db.WithContext(ctx)
	ranked := db.Table(s.table).
		Select(strings.Join(registry.Columns, ", ") +
			", ROW_NUMBER() OVER (PARTITION BY certificate_number ORDER BY " + latestFirst + ") AS rn")
	if q.Text != "" {
		like := "%" + strings.ToLower(q.Text) + "%"
		ranked = ranked.Where(
			"(LOWER(certificate_number) LIKE ? OR LOWER(equipment_name) LIKE ? OR LOWER(equipment_description) LIKE ? OR LOWER(issuer_name) LIKE ?)",
			like, like, like, like,
		)
	}
	if q.Brand != "" {
		ranked = ranked.Where("LOWER(brand) LIKE ?", "%"+strings.ToLower(q.Brand)+"%")
	}
	return db.Table("(?) AS ranked", ranked).Where("rn = ?", 1)
}

// Autofill is what the product form is pre-filled with.
type Autofill struct {
	Found                bool       `json:"found"`
	CertificateNumber    string     `json:"certificate_number"`
	ExpiryDate           *time.Time `json:"expiry_date,omitempty"`
	EquipmentName        string     `json:"equipment_name,omitempty"`
	EquipmentDescription string     `json:"equipment_description,omitempty"`
	Brand                string     `json:"brand,omitempty"`
	Reference            string     `json:"reference,omitempty"`
	IssuerName           string     `json:"issuer_name,omitempty"`
}

// Validate checks number at registration time. An unknown number is not an
// error: the form falls back to manual entry. A certificate that expired
// before the calendar day of now returns ErrCertificateExpired together with
// the record's autofill.
func (s *Service) Validate(ctx context.Context, number string, now time.Time) (Autofill, error) {
	rec, err := s.ByNumber(ctx, number)
	if errors.Is(err, ErrNotFound) {
		return Autofill{CertificateNumber: NormalizeNumber(number)}, nil
	}
	if err != nil {
		return Autofill{}, err
	}

	fill := Autofill{
		Found:                true,
		CertificateNumber:    rec.CertificateNumber,
		ExpiryDate:           rec.ExpiryDate,
		EquipmentName:        rec.EquipmentName,
		EquipmentDescription: rec.EquipmentDescription,
		Brand:                rec.Brand,
		Reference:            rec.Reference,
		IssuerName:           rec.IssuerName,
	}
	if rec.ExpiredAt(now) {
		s.log.Debug().Str("certificate", rec.CertificateNumber).Time("expiry", *rec.ExpiryDate).Msg("expired certificate rejected")
		return fill, ErrCertificateExpired
	}
	return fill, nil
}
