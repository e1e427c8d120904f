package indexer

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"thinkr-chatbot/internal/pdf"
)

const (
	defaultChunkSize = 1000
	defaultOverlap   = 200
	// overlapCharsPerSentence converts the character overlap into a sentence count.
	overlapCharsPerSentence = 50
	codeFence               = "```"
)

var (
	codeBlockPattern = regexp.MustCompile("(?s)```.*?```")
	sentenceEnd      = regexp.MustCompile(`[.!?]\s+`)
	// Longest form first so "1:23:45.678" is not reported as "1:23".
	timestampPattern = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2}(?:\.\d{3})?)?\b`)
)

// Chunker splits page text into overlapping, sentence-aligned chunks.
// Fenced code blocks are treated as a single unit and are never split.
type Chunker struct {
	ChunkSize int // Target maximum chunk length in runes
	Overlap   int // Approximate overlap in runes, carried as whole sentences
}

// NewChunker creates a chunker. Non-positive values fall back to 1000/200.
func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if overlap < 0 {
		overlap = defaultOverlap
	}
	return &Chunker{ChunkSize: chunkSize, Overlap: overlap}
}

// unit is a sentence or a whole fenced code block.
type unit struct {
	text   string
	isCode bool
}

// ChunkPages chunks every page and numbers the chunks across the document.
func (c *Chunker) ChunkPages(pages []pdf.Page) []Chunk {
	var chunks []Chunk
	for _, page := range pages {
		for _, text := range c.ChunkText(page.Text) {
			chunks = append(chunks, Chunk{
				Index:     len(chunks),
				Page:      page.Number,
				Text:      text,
				Timestamp: ExtractTimestamp(text),
				IsCode:    strings.Contains(text, codeFence),
			})
		}
	}
	return chunks
}

// ChunkText splits text into chunks of at most ChunkSize runes where possible.
// A single sentence or code block longer than ChunkSize becomes its own chunk.
func (c *Chunker) ChunkText(text string) []string {
	units := splitUnits(text)
	if len(units) == 0 {
		return nil
	}

	overlapUnits := c.Overlap / overlapCharsPerSentence

	var chunks []string
	var current []unit
	currentLen := 0
	// carried counts the leading units of current that repeat the previous chunk.
	carried := 0

	for _, u := range units {
		uLen := utf8.RuneCountInString(u.text)
		if len(current) > carried && currentLen+1+uLen > c.ChunkSize {
			chunks = append(chunks, joinUnits(current))
			current = tailOverlap(current, overlapUnits)
			currentLen = unitsLen(current)
			carried = len(current)
			// Drop the overlap if it alone would push the next unit over the limit.
			if carried > 0 && currentLen+1+uLen > c.ChunkSize {
				current = nil
				currentLen = 0
				carried = 0
			}
		}
		if len(current) > 0 {
			currentLen++
		}
		current = append(current, u)
		currentLen += uLen
	}
	if len(current) > carried {
		chunks = append(chunks, joinUnits(current))
	}

	return chunks
}

// splitUnits separates fenced code blocks from prose and splits prose into sentences.
// An unterminated fence swallows the rest of the text as code.
func splitUnits(text string) []unit {
	var units []unit
	rest := text
	for {
		loc := codeBlockPattern.FindStringIndex(rest)
		if loc == nil {
			break
		}
		units = append(units, splitSentences(rest[:loc[0]])...)
		units = append(units, unit{text: strings.TrimSpace(rest[loc[0]:loc[1]]), isCode: true})
		rest = rest[loc[1]:]
	}

	if open := strings.Index(rest, codeFence); open >= 0 {
		units = append(units, splitSentences(rest[:open])...)
		if code := strings.TrimSpace(rest[open:]); code != "" {
			units = append(units, unit{text: code, isCode: true})
		}
		return units
	}
	return append(units, splitSentences(rest)...)
}

// splitSentences splits prose after '.', '!' or '?' followed by whitespace.
func splitSentences(text string) []unit {
	var units []unit
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if s := normalizeSpace(text[start : loc[0]+1]); s != "" {
			units = append(units, unit{text: s})
		}
		start = loc[1]
	}
	if s := normalizeSpace(text[start:]); s != "" {
		units = append(units, unit{text: s})
	}
	return units
}

// normalizeSpace collapses runs of whitespace in prose into single spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// tailOverlap returns the last n prose units of prev, stopping at a code block.
func tailOverlap(prev []unit, n int) []unit {
	if n <= 0 {
		return nil
	}
	start := len(prev)
	for start > 0 && len(prev)-start < n && !prev[start-1].isCode {
		start--
	}
	out := make([]unit, len(prev)-start)
	copy(out, prev[start:])
	return out
}

func joinUnits(units []unit) string {
	var b strings.Builder
	for i, u := range units {
		if i > 0 {
			if u.isCode || units[i-1].isCode {
				b.WriteString("\n")
			} else {
				b.WriteString(" ")
			}
		}
		b.WriteString(u.text)
	}
	return b.String()
}

func unitsLen(units []unit) int {
	n := 0
	for i, u := range units {
		if i > 0 {
			n++
		}
		n += utf8.RuneCountInString(u.text)
	}
	return n
}

// ExtractTimestamp returns the first h:mm:ss.mmm, h:mm:ss or m:ss timestamp in text.
func ExtractTimestamp(text string) string {
	return timestampPattern.FindString(text)
}
