package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextChunker_ShortTextIsOneChunk(t *testing.T) {
	chunks := NewTextChunker().ChunkText("第一段。\n\n第二段。", 100, 10)
	assert.Equal(t, []string{"第一段。\n\n第二段。"}, chunks)
}

func TestTextChunker_SplitsOnParagraphs(t *testing.T) {
	para := strings.Repeat("字", 40)
	text := para + "\n\n" + para + "\n\n" + para

	chunks := NewTextChunker().ChunkText(text, 50, 5)
	require.Len(t, chunks, 3)
	assert.Equal(t, para, chunks[0])
	for _, chunk := range chunks[1:] {
		assert.True(t, strings.HasPrefix(chunk, strings.Repeat("字", 5)+"\n\n"))
	}
}

func TestTextChunker_LongParagraphFallsBackToSentences(t *testing.T) {
	sentence := strings.Repeat("长", 30) + "。"
	text := strings.Repeat(sentence, 4)

	chunks := NewTextChunker().ChunkText(text, 70, 0)
	require.Len(t, chunks, 2)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 70)
	}
}

func TestTextChunker_HardSplitsRunOnText(t *testing.T) {
	text := strings.Repeat("无", 250)

	chunks := NewTextChunker().ChunkText(text, 100, 0)
	require.Len(t, chunks, 3)
	assert.Equal(t, 250, utf8.RuneCountInString(strings.Join(chunks, "")))
}

func TestGetLastNChars(t *testing.T) {
	assert.Equal(t, "世界", getLastNChars("你好世界", 2))
	assert.Equal(t, "abc", getLastNChars("abc", 10))
	assert.Equal(t, "", getLastNChars("abc", 0))
}
