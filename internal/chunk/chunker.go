// Package chunk slices document text into retrieval-sized pieces for embedding.
// Pieces follow section headings where the document has them and fall back to
// paragraph packing, so a piece never starts mid-sentence unless a single
// paragraph exceeds the size cap.
package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Defaults used when the Chunker fields are zero.
const (
	DefaultMaxChars = 1200
	DefaultOverlap  = 150
)

// Piece is one chunk of document text ready for embedding. Start is the byte
// offset of Text in the source document, so Text == doc[Start:Start+len(Text)].
type Piece struct {
	Seq     int
	Heading string
	Text    string
	Start   int
}

// Chunker splits text into pieces of at most MaxChars bytes. Overlap is carried
// between consecutive pieces only when a single paragraph has to be hard-split.
type Chunker struct {
	MaxChars int
	Overlap  int
}

// heading lines start a new section: "1.", "2.3", "Section 4.", "ARTICLE IX".
var reHeading = regexp.MustCompile(`^\s*(?:(?:ARTICLE|Article|SECTION|Section)\s+[IVXLCivxlc\d]+|\d+(?:\.\d+)*)[.):\s]`)

var reParaBreak = regexp.MustCompile(`\n[ \t\r]*\n`)

// span is a half-open byte range into the source document.
type span struct {
	from, to int
}

type section struct {
	heading string
	span
}

// Split chunks the text deterministically. Seq starts at 1.
func (c Chunker) Split(text string) []Piece {
	limit := c.MaxChars
	if limit <= 0 {
		limit = DefaultMaxChars
	}
	overlap := c.Overlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= limit {
		overlap = limit / 4
	}

	var pieces []Piece
	for _, sec := range splitSections(text) {
		for _, sp := range packSpans(text, paragraphSpans(text, sec.span), limit, overlap) {
			pieces = append(pieces, Piece{
				Seq:     len(pieces) + 1,
				Heading: sec.heading,
				Text:    text[sp.from:sp.to],
				Start:   sp.from,
			})
		}
	}
	return pieces
}

// splitSections walks the text line by line and opens a new section at every
// heading line. The heading line itself stays in the section body so pieces
// read as self-contained quotes.
func splitSections(text string) []section {
	var out []section
	add := func(from, to int, heading string) {
		from, to = trimSpan(text, from, to)
		if to > from {
			out = append(out, section{heading: heading, span: span{from, to}})
		}
	}

	secStart := 0
	heading := ""
	pos := 0
	for pos < len(text) {
		end := strings.IndexByte(text[pos:], '\n')
		if end < 0 {
			end = len(text)
		} else {
			end += pos
		}
		if reHeading.MatchString(text[pos:end]) {
			add(secStart, pos, heading)
			heading = headingLabel(text[pos:end])
			secStart = pos
		}
		pos = end + 1
	}
	add(secStart, len(text), heading)
	return out
}

func headingLabel(line string) string {
	label := strings.TrimSpace(line)
	if len(label) > 80 {
		cut := label[:80]
		for len(cut) > 0 && !utf8.ValidString(cut) {
			cut = cut[:len(cut)-1]
		}
		label = strings.TrimSpace(cut)
	}
	return label
}

// paragraphSpans splits a section span at blank lines into trimmed paragraph spans.
func paragraphSpans(text string, sec span) []span {
	var out []span
	add := func(from, to int) {
		from, to = trimSpan(text, from, to)
		if to > from {
			out = append(out, span{from, to})
		}
	}

	start := sec.from
	for _, br := range reParaBreak.FindAllStringIndex(text[sec.from:sec.to], -1) {
		add(start, sec.from+br[0])
		start = sec.from + br[1]
	}
	add(start, sec.to)
	return out
}

// packSpans greedily merges adjacent paragraph spans up to limit bytes. Merged
// spans keep the original separator bytes between paragraphs, so every output
// span is still a contiguous slice of the document. Oversized paragraphs are
// hard-split with overlap.
func packSpans(text string, paras []span, limit, overlap int) []span {
	var out []span
	var cur span
	flush := func() {
		if cur.to > cur.from {
			out = append(out, cur)
		}
		cur = span{}
	}

	for _, p := range paras {
		switch {
		case p.to-p.from > limit:
			flush()
			out = append(out, hardSplit(text, p, limit, overlap)...)
		case cur.to == cur.from:
			cur = p
		case p.to-cur.from > limit:
			flush()
			cur = p
		default:
			cur.to = p.to
		}
	}
	flush()
	return out
}

// hardSplit windows one oversized paragraph into limit-sized spans, stepping
// back by overlap bytes between windows. Cut points snap back to whitespace
// when one is close enough, and never land inside a UTF-8 rune.
func hardSplit(text string, p span, limit, overlap int) []span {
	var out []span
	start := p.from
	for start < p.to {
		end := start + limit
		if end >= p.to {
			end = p.to
		} else {
			for end > start && !utf8.RuneStart(text[end]) {
				end--
			}
			if i := strings.LastIndexAny(text[start:end], " \n\t"); i > (end-start)*3/4 {
				end = start + i
			}
		}
		from, to := trimSpan(text, start, end)
		if to > from {
			out = append(out, span{from, to})
		}
		if end >= p.to {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		for next < p.to && !utf8.RuneStart(text[next]) {
			next++
		}
		start = next
	}
	return out
}

func trimSpan(text string, from, to int) (int, int) {
	for from < to && isSpace(text[from]) {
		from++
	}
	for to > from && isSpace(text[to-1]) {
		to--
	}
	return from, to
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}
