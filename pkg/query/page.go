package query

import (
	"gorm.io/gorm"
)

// Page finds the entities matching params.Filter on db ordered and paged by params. The total
// number of entities matching the filter is returned alongside the page. Associations named by
// preloads are only loaded for the entities of the page.
func Page[T any](db *gorm.DB, params Params, fields Fields, preloads ...string) ([]T, int64, error) {
	tx, err := Filter(db, params.Filter, fields)
	if err != nil {
		return nil, 0, err
	}

	order, err := OrderBy(params.Sort, fields)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	err = tx.Model(new(T)).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	find := tx.Order(order).Offset(params.Offset).Limit(params.Limit)
	for _, preload := range preloads {
		find = find.Preload(preload)
	}

	var items []T
	err = find.Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Filter adds the condition of the RSQL filter to db. The returned db can safely be reused.
func Filter(db *gorm.DB, filter string, fields Fields) (*gorm.DB, error) {
	where, args, err := Where(filter, fields)
	if err != nil {
		return nil, err
	}

	if where != "" {
		db = db.Where(where, args...)
	}
	return db.Session(&gorm.Session{}), nil
}
