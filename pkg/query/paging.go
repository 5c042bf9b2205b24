// Package query translates the paging, sorting and RSQL filter query parameters of the REST API
// into gorm queries.
package query

import (
	"strconv"

	"github.com/dhis2-sre/update-manager/internal/errdef"
)

const (
	DefaultOffset = 0
	DefaultLimit  = 50
	MaxLimit      = 500
)

// Params are the query parameters of a paged list request.
type Params struct {
	Offset int
	Limit  int
	Sort   []Order
	// Filter is an RSQL expression.
	Filter string
}

// NewParams parses and sanitizes the raw query parameters. Empty parameters fall back to their
// defaults.
func NewParams(offset, limit, sort, filter string) (Params, error) {
	o, err := parseInt("offset", offset, DefaultOffset)
	if err != nil {
		return Params{}, err
	}

	l, err := parseInt("limit", limit, DefaultLimit)
	if err != nil {
		return Params{}, err
	}

	orders, err := ParseSort(sort)
	if err != nil {
		return Params{}, err
	}

	return Params{
		Offset: SanitizeOffset(o),
		Limit:  SanitizeLimit(l),
		Sort:   orders,
		Filter: filter,
	}, nil
}

// Unpaged returns params selecting up to MaxLimit entities matching filter.
func Unpaged(filter string) Params {
	return Params{Offset: DefaultOffset, Limit: MaxLimit, Filter: filter}
}

// SanitizeOffset returns DefaultOffset for negative offsets.
func SanitizeOffset(offset int) int {
	if offset < 0 {
		return DefaultOffset
	}
	return offset
}

// SanitizeLimit returns DefaultLimit for limits below 1 and caps limits at MaxLimit.
func SanitizeLimit(limit int) int {
	if limit < 1 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func parseInt(name, value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, errdef.NewBadRequest("invalid %s parameter %q: must be an integer", name, value)
	}
	return i, nil
}
