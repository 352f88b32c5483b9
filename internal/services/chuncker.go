package services

import (
	"strings"
	"unicode/utf8"
)

type TextChunker struct{}

func NewTextChunker() *TextChunker {
	return &TextChunker{}
}

// ChunkText splits text into chunks of about maxChunkSize runes, preferring
// paragraph then sentence boundaries. Each chunk after the first starts
// with the last overlap runes of the previous one.
func (tc *TextChunker) ChunkText(text string, maxChunkSize int, overlap int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChunkSize {
		overlap = maxChunkSize / 4
	}

	var (
		chunks  []string
		current strings.Builder
	)

	size := func() int { return utf8.RuneCountInString(current.String()) }

	add := func(piece, sep string) {
		if current.Len() > 0 && size()+utf8.RuneCountInString(sep+piece) > maxChunkSize {
			prev := current.String()
			chunks = append(chunks, prev)
			current.Reset()
			if overlapText := getLastNChars(prev, overlap); overlapText != "" {
				current.WriteString(overlapText)
			}
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(piece)
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if utf8.RuneCountInString(para) <= maxChunkSize {
			add(para, "\n\n")
			continue
		}

		// If paragraph itself is too long, split by sentences
		for _, sentence := range splitIntoSentences(para) {
			for _, piece := range splitRunes(sentence, maxChunkSize-overlap) {
				add(piece, " ")
			}
		}
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

func splitIntoSentences(text string) []string {
	var (
		result  []string
		current strings.Builder
	)
	for _, r := range text {
		current.WriteRune(r)
		switch r {
		case '.', '!', '?', '。', '！', '？', '；':
			if s := strings.TrimSpace(current.String()); s != "" {
				result = append(result, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		result = append(result, s)
	}
	return result
}

// splitRunes cuts s into pieces of at most n runes.
func splitRunes(s string, n int) []string {
	if n <= 0 {
		n = 1
	}
	runes := []rune(s)
	if len(runes) <= n {
		return []string{s}
	}

	var pieces []string
	for start := 0; start < len(runes); start += n {
		end := min(start+n, len(runes))
		pieces = append(pieces, string(runes[start:end]))
	}
	return pieces
}

func getLastNChars(text string, n int) string {
	if n <= 0 {
		return ""
	}

	runes := []rune(text)
	if len(runes) <= n {
		return text
	}

	return string(runes[len(runes)-n:])
}
