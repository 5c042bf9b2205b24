package query

import (
	"strings"

	"github.com/dhis2-sre/update-manager/internal/errdef"
)

type Order struct {
	Field string
	Desc  bool
}

// ParseSort parses a sort parameter of the form "field:ASC,field2:DESC". The direction is
// optional and defaults to ascending.
func ParseSort(sort string) ([]Order, error) {
	if strings.TrimSpace(sort) == "" {
		return nil, nil
	}

	var orders []Order
	for _, part := range strings.Split(sort, ",") {
		field, direction, found := strings.Cut(strings.TrimSpace(part), ":")
		field = strings.ToLower(strings.TrimSpace(field))
		if field == "" {
			return nil, errdef.NewBadRequest("invalid sort parameter %q: missing field", sort)
		}

		order := Order{Field: field}
		if found {
			switch strings.ToUpper(strings.TrimSpace(direction)) {
			case "ASC":
			case "DESC":
				order.Desc = true
			default:
				return nil, errdef.NewBadRequest("invalid sort direction %q of field %q: must be ASC or DESC", direction, field)
			}
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// OrderBy returns the ORDER BY clause for orders. Results are always ordered by id last so pages
// are stable.
func OrderBy(orders []Order, fields Fields) (string, error) {
	clauses := make([]string, 0, len(orders)+1)
	byID := false
	for _, order := range orders {
		field, ok := fields[order.Field]
		if !ok || field.Subquery != "" || field.Keyed {
			return "", errdef.NewBadRequest("sorting by field %q is not supported, supported fields are %s", order.Field, fields.names())
		}

		direction := "ASC"
		if order.Desc {
			direction = "DESC"
		}
		clauses = append(clauses, field.Column+" "+direction)
		if field.Column == "id" {
			byID = true
		}
	}

	if !byID {
		clauses = append(clauses, "id ASC")
	}
	return strings.Join(clauses, ", "), nil
}
