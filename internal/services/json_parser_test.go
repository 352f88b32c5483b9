package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestParseJSONResponse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain object",
			raw:  `{"a": 1}`,
			want: `{"a": 1}`,
		},
		{
			name: "markdown fence with language",
			raw:  "```json\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "surrounding prose",
			raw:  "好的，结果如下：\n{\"a\": 1}\n希望对你有帮助。",
			want: `{"a": 1}`,
		},
		{
			name: "trailing commas",
			raw:  `{"a": [1, 2,], "b": {"c": 3,},}`,
			want: `{"a": [1, 2], "b": {"c": 3}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, perr := ParseJSONResponse(tt.raw)
			require.Nil(t, perr)
			assert.JSONEq(t, tt.want, got)
		})
	}
}

func TestParseJSONResponse_Errors(t *testing.T) {
	for name, raw := range map[string]string{
		"empty":      "",
		"no json":    "抱歉，我无法完成这个请求。",
		"truncated":  `{"a": {"b": 1}`,
		"array only": `[1, 2, 3]`,
	} {
		t.Run(name, func(t *testing.T) {
			got, perr := ParseJSONResponse(raw)
			require.NotNil(t, perr)
			assert.Empty(t, got)
			assert.Equal(t, raw, perr.Raw)
			assert.Equal(t, KindParse, ErrorKind(perr))
		})
	}
}

func TestParseJSONResponse_KeepsNestedObjects(t *testing.T) {
	got, perr := ParseJSONResponse("```\n" + evaluationJSON(82, 75) + "\n```")
	require.Nil(t, perr)
	assert.Equal(t, 82.0, gjson.Get(got, "overall_rating").Float())
	assert.Equal(t, 6, len(gjson.Get(got, "dimensions").Map()))
}

func TestParseJSONResponse_LeavesCommasInsideStrings(t *testing.T) {
	got, perr := ParseJSONResponse(`{"a": "x, }", "b": "[1, ]"}`)
	require.Nil(t, perr)
	assert.Equal(t, "x, }", gjson.Get(got, "a").String())
	assert.Equal(t, "[1, ]", gjson.Get(got, "b").String())
}
