package docs

import (
	"sort"
	"strings"
	"unicode"
)

const defaultChunkRunes = 1200

// SplitChunks cuts text into pieces of at most maxRunes, breaking on blank
// lines first and on sentence ends inside long paragraphs.
func SplitChunks(text string, maxRunes int) []string {
	if maxRunes <= 0 {
		maxRunes = defaultChunkRunes
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
		curLen = 0
	}
	add := func(piece string) {
		n := len([]rune(piece))
		if curLen > 0 && curLen+n+2 > maxRunes {
			flush()
		}
		if curLen > 0 {
			cur.WriteString("\n\n")
			curLen += 2
		}
		cur.WriteString(piece)
		curLen += n
	}

	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len([]rune(para)) <= maxRunes {
			add(para)
			continue
		}
		for _, piece := range splitLong(para, maxRunes) {
			add(piece)
		}
	}
	flush()
	return chunks
}

// splitLong breaks a paragraph after sentence punctuation, or hard at
// maxRunes when a single sentence is longer than that.
func splitLong(para string, maxRunes int) []string {
	runes := []rune(para)
	var out []string
	start := 0
	lastStop := -1
	for i, r := range runes {
		if r == '.' || r == '!' || r == '?' {
			lastStop = i
		}
		if i-start+1 < maxRunes {
			continue
		}
		end := i
		if lastStop >= start {
			end = lastStop
		}
		out = append(out, strings.TrimSpace(string(runes[start:end+1])))
		start = end + 1
		lastStop = -1
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func terms(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Rank orders chunks by how many distinct query terms (longer than two
// characters) they contain and returns at most k with a non-zero score.
func Rank(chunks []Chunk, query string, k int) []Chunk {
	want := map[string]struct{}{}
	for _, t := range terms(query) {
		if len([]rune(t)) > 2 {
			want[t] = struct{}{}
		}
	}
	if len(want) == 0 || k <= 0 {
		return nil
	}

	type scored struct {
		chunk Chunk
		score int
	}
	var hits []scored
	for _, c := range chunks {
		seen := map[string]struct{}{}
		for _, t := range terms(c.Content) {
			if _, ok := want[t]; ok {
				seen[t] = struct{}{}
			}
		}
		if len(seen) > 0 {
			hits = append(hits, scored{chunk: c, score: len(seen)})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]Chunk, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.chunk)
	}
	return out
}
