package store

import (
	"context"
	"database/sql"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"sales-dashboard/internal/models"
)

// Facets lists the distinct filter options present in the dataset. Values
// that differ only in case are reported once, in their first-loaded spelling.
func (s *Store) Facets(ctx context.Context) (models.Facets, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		f   models.Facets
		err error
	)
	if f.Regions, err = s.distinct(ctx, "customer_region", "region_key"); err != nil {
		return models.Facets{}, err
	}
	if f.Genders, err = s.distinct(ctx, "gender", "gender_key"); err != nil {
		return models.Facets{}, err
	}
	if f.Categories, err = s.distinct(ctx, "product_category", "category_key"); err != nil {
		return models.Facets{}, err
	}
	if f.PaymentMethods, err = s.distinct(ctx, "payment_method", "payment_key"); err != nil {
		return models.Facets{}, err
	}
	if f.Tags, err = s.distinctTags(ctx); err != nil {
		return models.Facets{}, err
	}

	var extents struct {
		MinAge    sql.NullInt64
		MaxAge    sql.NullInt64
		FirstDate sql.NullString
		LastDate  sql.NullString
	}
	row := s.db.WithContext(ctx).
		Raw("SELECT MIN(age), MAX(age), MIN(sale_date), MAX(sale_date) FROM sales").
		Row()
	if err := row.Scan(&extents.MinAge, &extents.MaxAge, &extents.FirstDate, &extents.LastDate); err != nil {
		return models.Facets{}, classify(ctx, err)
	}

	f.MinAge = int(extents.MinAge.Int64)
	f.MaxAge = int(extents.MaxAge.Int64)
	if extents.FirstDate.Valid {
		f.FirstDate = &extents.FirstDate.String
	}
	if extents.LastDate.Valid {
		f.LastDate = &extents.LastDate.String
	}
	return f, nil
}

// distinct returns one display value per folded key, taking the spelling of
// the earliest loaded record.
func (s *Store) distinct(ctx context.Context, column, key string) ([]string, error) {
	var rows []struct {
		DisplayValue string
		FoldKey      string
	}
	first := s.db.Model(&saleRow{}).
		Select("MIN(seq)").
		Where(key + " <> ''").
		Group(key)
	err := s.db.WithContext(ctx).
		Model(&saleRow{}).
		Select(column+" AS display_value, "+key+" AS fold_key").
		Where("seq IN (?)", first).
		Scan(&rows).Error
	if err != nil {
		return nil, classify(ctx, err)
	}

	seen := make(map[string]struct{})
	values := []string{}
	for _, r := range rows {
		if _, ok := seen[r.FoldKey]; ok {
			continue
		}
		seen[r.FoldKey] = struct{}{}
		values = append(values, r.DisplayValue)
	}
	sortDisplay(values)
	return values, nil
}

func (s *Store) distinctTags(ctx context.Context) ([]string, error) {
	var stored []string
	err := s.db.WithContext(ctx).
		Model(&saleRow{}).
		Distinct("tags").
		Where("tags <> ''").
		Pluck("tags", &stored).Error
	if err != nil {
		return nil, classify(ctx, err)
	}

	seen := make(map[string]struct{})
	tags := []string{}
	for _, joined := range stored {
		for _, t := range decodeTags(joined) {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			tags = append(tags, t)
		}
	}
	sortDisplay(tags)
	return tags, nil
}

func sortDisplay(values []string) {
	// A Collator is not safe for concurrent use.
	collate.New(language.English, collate.IgnoreCase).SortStrings(values)
}
