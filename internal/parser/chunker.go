package parser

import (
	"strings"

	"study-assistant/internal/models"
)

// Chunk splits text on blank lines, trims every piece and drops the empty ones.
// Order is preserved. Whitespace-only input yields no chunks.
func Chunk(text string) []string {
	var chunks []string
	for _, piece := range strings.Split(text, models.ChunkSeparator) {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		chunks = append(chunks, piece)
	}
	return chunks
}

// SplitOversized breaks chunks longer than maxChars into overlapping pieces.
// A maxChars of zero or less returns chunks untouched.
func SplitOversized(chunks []string, maxChars, overlapChars int) []string {
	if maxChars <= 0 {
		return chunks
	}
	var result []string
	for _, chunk := range chunks {
		result = append(result, chunkContent(chunk, maxChars, overlapChars)...)
	}
	return result
}

// chunk content into chunks of at most maxChars characters, overlapping by overlapChars
func chunkContent(content string, maxChars, overlapChars int) []string {
	if maxChars <= 0 {
		return nil
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}

	runes := []rune(strings.TrimSpace(content))
	contentLen := len(runes)
	if contentLen == 0 {
		return nil
	}
	if contentLen <= maxChars {
		return []string{string(runes)}
	}

	var chunks []string
	start := 0
	for start < contentLen {
		end := min(start+maxChars, contentLen)

		// prefer breaking on a space, newline or full stop in the last 10% of the window
		if end < contentLen {
			lookBack := min(maxChars/10, end-start)
			for i := end - 1; i >= end-lookBack && i > start; i-- {
				if runes[i] == ' ' || runes[i] == '\n' || runes[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= contentLen {
			break
		}

		next := end - overlapChars
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}
