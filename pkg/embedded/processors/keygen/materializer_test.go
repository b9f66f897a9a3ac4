package keygen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wehubfusion/keygen/pkg/embedded/pathutil"
	"github.com/wehubfusion/keygen/pkg/jsonvalue"
)

const feedDocument = `{
	"name": {"first": "Tom", "last": "Anderson"},
	"id": 373443,
	"items": [
		{
			"pub_date": "Tue, 17 Apr 2023 14:59:04 GMT",
			"last_build_date": "Tue, 18 Apr 2023 15:00:01 GMT",
			"link": "https://example.com/456970"
		},
		{
			"pub_date": "Tue, 17 Apr 2023 14:59:44 GMT",
			"last_build_date": "Tue, 18 Apr 2023 15:00:01 GMT",
			"link": "https://example.com/3343"
		}
	],
	"pub_date": "Tue, 18 Apr 2023 18:59:04 GMT",
	"last_build_date": "Tue, 20 Apr 2023 15:00:01 GMT",
	"link": "https://example.com/3343",
	"names": ["Sara", "Alex", "Jack"]
}`

func materialize(t *testing.T, doc string, lookup ...string) Material {
	t.Helper()
	value, err := jsonvalue.Parse([]byte(doc))
	require.NoError(t, err)

	paths := make([]pathutil.Path, len(lookup))
	for i, raw := range lookup {
		paths[i] = pathutil.MustParsePath(raw)
	}
	return NewMaterializer(paths).Materialize(value)
}

func TestMaterialize(t *testing.T) {
	tests := []struct {
		name     string
		lookup   []string
		expected string
	}{
		{"number", []string{"/id"}, "373443"},
		{"string", []string{"/link"}, "https://example.com/3343"},
		{"nested string", []string{"/name/last"}, "Anderson"},
		{"multiple strings", []string{"/pub_date", "/last_build_date"},
			"Tue, 18 Apr 2023 18:59:04 GMTTue, 20 Apr 2023 15:00:01 GMT"},
		{"object subtree", []string{"/name"}, `{"first":"Tom","last":"Anderson"}`},
		{"array subtree", []string{"/names"}, `["Sara","Alex","Jack"]`},
		{"mixed", []string{"/items/0/pub_date", "/items/0/last_build_date", "/link"},
			"Tue, 17 Apr 2023 14:59:04 GMTTue, 18 Apr 2023 15:00:01 GMThttps://example.com/3343"},
		{"invalid", []string{"/invalid"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(materialize(t, feedDocument, tt.lookup...).Input))
		})
	}
}

func TestMaterialize_ReportsMissingPaths(t *testing.T) {
	m := materialize(t, feedDocument, "/id", "/invalid", "/items/9", "/link/x")
	assert.Equal(t, "373443", string(m.Input))
	assert.Equal(t, []string{"/invalid", "/items/9", "/link/x"}, m.Missing)
}

func TestMaterialize_AbsentContributesNothing(t *testing.T) {
	withMiss := materialize(t, feedDocument, "/pub_date", "/nope", "/link")
	without := materialize(t, feedDocument, "/pub_date", "/link")
	assert.Equal(t, without.Input, withMiss.Input)
}

func TestMaterialize_RootPath(t *testing.T) {
	doc := `{"b":[1,2.0],"a":{"y":null,"x":true}}`
	for _, root := range []string{"/", ""} {
		m := materialize(t, doc, root)
		assert.Equal(t, `{"a":{"x":true,"y":null},"b":[1,2]}`, string(m.Input))
	}
}

func TestMaterialize_ScalarLiterals(t *testing.T) {
	m := materialize(t, `{"t":true,"f":false,"n":null,"x":1.50}`, "/t", "/f", "/n", "/x")
	assert.Equal(t, "truefalsenull1.5", string(m.Input))
}

func TestMaterialize_EmptyMaterialIsNotNil(t *testing.T) {
	m := materialize(t, `{}`, "/missing")
	assert.NotNil(t, m.Input)
	assert.Empty(t, m.Input)
}
