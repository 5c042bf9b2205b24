package query_test

import (
	"strings"
	"testing"
	"time"

	"github.com/dhis2-sre/update-manager/internal/errdef"
	"github.com/dhis2-sre/update-manager/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParams(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		params, err := query.NewParams("", "", "", "")

		require.NoError(t, err)
		assert.Equal(t, query.Params{Offset: 0, Limit: 50}, params)
	})

	t.Run("Sanitized", func(t *testing.T) {
		tests := map[string]struct {
			offset, limit         string
			wantOffset, wantLimit int
		}{
			"negative offset": {offset: "-10", limit: "10", wantOffset: 0, wantLimit: 10},
			"zero limit":      {offset: "5", limit: "0", wantOffset: 5, wantLimit: 50},
			"negative limit":  {offset: "5", limit: "-1", wantOffset: 5, wantLimit: 50},
			"limit above max": {offset: "0", limit: "1000", wantOffset: 0, wantLimit: 500},
			"max limit":       {offset: "0", limit: "500", wantOffset: 0, wantLimit: 500},
		}

		for name, test := range tests {
			t.Run(name, func(t *testing.T) {
				params, err := query.NewParams(test.offset, test.limit, "", "")

				require.NoError(t, err)
				assert.Equal(t, test.wantOffset, params.Offset)
				assert.Equal(t, test.wantLimit, params.Limit)
			})
		}
	})

	t.Run("InvalidNumber", func(t *testing.T) {
		_, err := query.NewParams("abc", "", "", "")

		require.Error(t, err)
		assert.True(t, errdef.IsBadRequest(err))
	})
}

func TestParseSort(t *testing.T) {
	orders, err := query.ParseSort("name:ASC, createdAt:desc,version")

	require.NoError(t, err)
	assert.Equal(t, []query.Order{
		{Field: "name"},
		{Field: "createdat", Desc: true},
		{Field: "version"},
	}, orders)

	_, err = query.ParseSort("name:UP")
	assert.True(t, errdef.IsBadRequest(err))

	_, err = query.ParseSort(":ASC")
	assert.True(t, errdef.IsBadRequest(err))
}

func TestOrderBy(t *testing.T) {
	orderBy, err := query.OrderBy([]query.Order{{Field: "name", Desc: true}}, query.DistributionSetFields)
	require.NoError(t, err)
	assert.Equal(t, "name DESC, id ASC", orderBy)

	orderBy, err = query.OrderBy([]query.Order{{Field: "id", Desc: true}}, query.DistributionSetFields)
	require.NoError(t, err)
	assert.Equal(t, "id DESC", orderBy)

	orderBy, err = query.OrderBy(nil, query.TargetFields)
	require.NoError(t, err)
	assert.Equal(t, "id ASC", orderBy)

	_, err = query.OrderBy([]query.Order{{Field: "tag"}}, query.TargetFields)
	assert.True(t, errdef.IsBadRequest(err))

	_, err = query.OrderBy([]query.Order{{Field: "unknown"}}, query.TargetFields)
	assert.True(t, errdef.IsBadRequest(err))
}

func TestParse(t *testing.T) {
	node, err := query.Parse(`name==device*;(updatestatus==pending,description=in=('a b',"c\"d"))`)

	require.NoError(t, err)
	assert.Equal(t, query.Logical{
		Operator: query.And,
		Children: []query.Node{
			query.Comparison{Selector: "name", Operator: "==", Arguments: []string{"device*"}},
			query.Logical{
				Operator: query.Or,
				Children: []query.Node{
					query.Comparison{Selector: "updatestatus", Operator: "==", Arguments: []string{"pending"}},
					query.Comparison{Selector: "description", Operator: "=in=", Arguments: []string{"a b", `c"d`}},
				},
			},
		},
	}, node)
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"empty":                  " ",
		"missing operator":       "name",
		"unknown operator":       "name=like=x",
		"missing value":          "name==",
		"unclosed group":         "(name==a",
		"unclosed list":          "name=in=(a,b",
		"unterminated quote":     "name=='abc",
		"trailing characters":    "name==a)",
		"list for single value":  "name==(a,b)",
		"dangling and":           "name==a;",
		"single equals operator": "name=a",
	}

	for name, filter := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := query.Parse(filter)

			require.Error(t, err)
			assert.True(t, errdef.IsBadRequest(err))
		})
	}
}

func TestParseNesting(t *testing.T) {
	nested := func(depth int) string {
		return strings.Repeat("(", depth) + "name==a" + strings.Repeat(")", depth)
	}

	node, err := query.Parse(nested(32))
	require.NoError(t, err)
	assert.Equal(t, query.Comparison{Selector: "name", Operator: "==", Arguments: []string{"a"}}, node)

	for _, depth := range []int{33, 450000} {
		_, err := query.Parse(nested(depth))

		require.Error(t, err)
		assert.True(t, errdef.IsBadRequest(err))
		assert.ErrorContains(t, err, "nested deeper than 32 levels")
	}

	_, err = query.Parse(strings.Repeat("(name==a);", 100) + "name==b")
	assert.NoError(t, err, "sibling groups don't add up")
}

func TestWhere(t *testing.T) {
	tests := map[string]struct {
		filter   string
		fields   query.Fields
		want     string
		wantArgs []any
	}{
		"equal": {
			filter:   "name==device-1",
			fields:   query.TargetFields,
			want:     "name = ?",
			wantArgs: []any{"device-1"},
		},
		"selector is case insensitive": {
			filter:   "controllerId==device-1",
			fields:   query.TargetFields,
			want:     "controller_id = ?",
			wantArgs: []any{"device-1"},
		},
		"wildcard": {
			filter:   "name==Dev*_1",
			fields:   query.TargetFields,
			want:     "LOWER(name) LIKE ?",
			wantArgs: []any{`dev%\_1`},
		},
		"not equal wildcard": {
			filter:   "name!=dev*",
			fields:   query.TargetFields,
			want:     "NOT (LOWER(name) LIKE ?)",
			wantArgs: []any{"dev%"},
		},
		"enum": {
			filter:   "updatestatus==PENDING",
			fields:   query.TargetFields,
			want:     "update_status = ?",
			wantArgs: []any{"pending"},
		},
		"number comparison": {
			filter:   "id=ge=10",
			fields:   query.DistributionSetFields,
			want:     "id >= ?",
			wantArgs: []any{int64(10)},
		},
		"time": {
			filter:   "createdat<1700000000000",
			fields:   query.TargetFields,
			want:     "created_at < ?",
			wantArgs: []any{time.UnixMilli(1700000000000)},
		},
		"bool": {
			filter:   "complete==true",
			fields:   query.DistributionSetFields,
			want:     "complete = ?",
			wantArgs: []any{true},
		},
		"in": {
			filter:   "id=in=(1,2)",
			fields:   query.DistributionSetFields,
			want:     "id IN ?",
			wantArgs: []any{[]any{int64(1), int64(2)}},
		},
		"out": {
			filter:   "name=out=(a,b)",
			fields:   query.TagFields,
			want:     "NOT (name IN ?)",
			wantArgs: []any{[]any{"a", "b"}},
		},
		"subquery": {
			filter:   "tag==prod",
			fields:   query.TargetFields,
			want:     "id IN (SELECT target_tag_assignments.target_id FROM target_tag_assignments JOIN tags ON tags.id = target_tag_assignments.tag_id WHERE tags.name = ?)",
			wantArgs: []any{"prod"},
		},
		"negated subquery": {
			filter:   "tag!=prod",
			fields:   query.TargetFields,
			want:     "NOT (id IN (SELECT target_tag_assignments.target_id FROM target_tag_assignments JOIN tags ON tags.id = target_tag_assignments.tag_id WHERE tags.name = ?))",
			wantArgs: []any{"prod"},
		},
		"attribute": {
			filter:   "attribute.hw.revision==2",
			fields:   query.TargetFields,
			want:     "attributes ->> ? = ?",
			wantArgs: []any{"hw.revision", "2"},
		},
		"metadata": {
			filter:   "metadata.region==eu",
			fields:   query.TargetFields,
			want:     "id IN (SELECT metadata.owner_id FROM metadata WHERE metadata.owner_kind = 'target' AND metadata.key = ? AND metadata.value = ?)",
			wantArgs: []any{"region", "eu"},
		},
		"logical": {
			filter:   "name==a;description==b,name==c",
			fields:   query.TargetFields,
			want:     "((name = ? AND description = ?) OR name = ?)",
			wantArgs: []any{"a", "b", "c"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			where, args, err := query.Where(test.filter, test.fields)

			require.NoError(t, err)
			assert.Equal(t, test.want, where)
			assert.Equal(t, test.wantArgs, args)
		})
	}
}

func TestWhereErrors(t *testing.T) {
	tests := map[string]struct {
		filter string
		fields query.Fields
	}{
		"unknown field":    {filter: "unknown==1", fields: query.TargetFields},
		"missing key":      {filter: "attribute==1", fields: query.TargetFields},
		"invalid number":   {filter: "id==abc", fields: query.DistributionSetFields},
		"invalid bool":     {filter: "complete==maybe", fields: query.DistributionSetFields},
		"invalid time":     {filter: "createdat==yesterday", fields: query.TargetFields},
		"syntax error":     {filter: "name==a;;", fields: query.TargetFields},
		"key on non keyed": {filter: "name.first==a", fields: query.TargetFields},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := query.Where(test.filter, test.fields)

			require.Error(t, err)
			assert.True(t, errdef.IsBadRequest(err))
		})
	}
}

func TestWhereEmpty(t *testing.T) {
	where, args, err := query.Where("  ", query.TargetFields)

	require.NoError(t, err)
	assert.Empty(t, where)
	assert.Nil(t, args)
}
