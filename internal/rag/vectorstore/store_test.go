package vectorstore

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  string
	}{
		{name: "未超限原样返回", text: "hello", limit: 10, want: "hello"},
		{name: "ASCII 按字节截断", text: "hello", limit: 3, want: "hel"},
		// "中" 占 3 字节, 上限落在字符中间时回退到完整字符
		{name: "中文不被截成半个字符", text: "中文内容", limit: 4, want: "中"},
		{name: "上限恰在字符边界", text: "中文内容", limit: 6, want: "中文"},
		{name: "上限小于单个字符", text: "中", limit: 2, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateText(tt.text, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestTruncateText_LongCJK(t *testing.T) {
	// 接近上限的 CJK 文本截断后仍是合法 UTF-8
	text := strings.Repeat("知", MaxTextLength/3+10)
	got := truncateText(text, MaxTextLength)
	assert.LessOrEqual(t, len(got), MaxTextLength)
	assert.True(t, utf8.ValidString(got))
}
