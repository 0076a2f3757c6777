package taskline

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/aidanlsb/dailysync/internal/wikilink"
)

var (
	checkboxRe      = regexp.MustCompile(`^[\s>]*-\s*\[.\]\s?`)
	leadingTimeRe   = regexp.MustCompile(`^\s*\d{1,2}:\d{2}(?:\s*-\s*\d{1,2}:\d{2})?(?:\s+|$)`)
	trailingIDRe    = regexp.MustCompile(`(?:^|\s+)\^[a-zA-Z0-9]*\s*$`)
	emojiDateLinkRe = regexp.MustCompile(`[📅✅]\s*\[\[\d{4}-\d{2}-\d{2}[^\]]*\]\]`)
	dateWikiLinkRe  = regexp.MustCompile(`\[\[\d{4}-\d{2}-\d{2}(?:#\^[a-zA-Z0-9]+)?(?:\|[^\]]*)?\]\]`)
	emojiDateAnyRe  = regexp.MustCompile(`[📅✅]\s*\d{4}-\d{2}-\d{2}`)
	connectRe       = regexp.MustCompile(`\(connect::.*?\)`)
	whitespaceRe    = regexp.MustCompile(`\s+`)

	mdLinkRe       = regexp.MustCompile(`\[([^\]]+?)\]\(([^)]+?)\)`)
	anyWikiLinkRe  = regexp.MustCompile(`\[\[.*?\]\]`)
	bareDateRe     = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	timeRangeRe    = regexp.MustCompile(`\d{1,2}:\d{2}\s*-\s*\d{1,2}:\d{2}`)
	clockRe        = regexp.MustCompile(`\d{1,2}:\d{2}`)
	hashTrailingID = regexp.MustCompile(`(?:^|\s)\^[a-zA-Z0-9]{6,7}\s*$`)
	leadingQuoteWS = regexp.MustCompile(`^[\s>]+`)
)

// CleanText reduces a raw task line to its display text.
//
// It removes the checkbox and indentation, a leading time range, the block ID
// (blockID when given, else any trailing ^token), return links, date links,
// links back to context (the file the task lives in), emoji date annotations
// and (connect::...) annotations. Whitespace runs collapse to one space.
func CleanText(raw, blockID, context string) string {
	s := checkboxRe.ReplaceAllString(raw, "")
	s = leadingTimeRe.ReplaceAllString(s, "")
	s = strings.TrimRight(s, " \t\r")

	if blockID != "" {
		s = regexp.MustCompile(`(?:^|\s+)\^` + regexp.QuoteMeta(blockID) + `\s*$`).ReplaceAllString(s, "")
	}
	s = trailingIDRe.ReplaceAllString(s, "")

	s = wikilink.StripReturns(s)
	s = emojiDateLinkRe.ReplaceAllString(s, "")
	s = dateWikiLinkRe.ReplaceAllString(s, "")
	if context = strings.TrimSpace(context); context != "" {
		s = contextLinkRe(context).ReplaceAllString(s, "")
	}
	s = emojiDateAnyRe.ReplaceAllString(s, "")
	s = connectRe.ReplaceAllString(s, "")

	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func contextLinkRe(context string) *regexp.Regexp {
	ctx := regexp.QuoteMeta(norm.NFC.String(context))
	return regexp.MustCompile(`\[\[\s*` + ctx + `\s*(?:#\^[a-zA-Z0-9]+)?(?:\|[^\]]*)?\]\]`)
}

// NormalizeText prepares text for fingerprinting. Link syntax, dates, clock
// times and a trailing block ID are dropped so that re-rendering a task never
// changes its fingerprint.
func NormalizeText(text string) string {
	if text == "" {
		return ""
	}
	text = norm.NFKC.String(text)
	text = mdLinkRe.ReplaceAllString(text, "$2")
	text = anyWikiLinkRe.ReplaceAllString(text, "")
	text = bareDateRe.ReplaceAllString(text, "")
	text = timeRangeRe.ReplaceAllString(text, "")
	text = clockRe.ReplaceAllString(text, "")
	text = hashTrailingID.ReplaceAllString(text, "")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// NormalizeBlockContent flattens a block's child lines for fingerprinting.
// Quote markers and indentation are dropped, as are blank and bare "-" lines.
func NormalizeBlockContent(children []string) string {
	var kept []string
	for _, line := range children {
		clean := strings.TrimSpace(leadingQuoteWS.ReplaceAllString(line, ""))
		if clean == "" || clean == "-" {
			continue
		}
		kept = append(kept, clean)
	}
	return strings.Join(kept, "\n") + "\n"
}

// Hash returns the fingerprint of a task's status and content text.
func Hash(status, content string) string {
	return digest(status, NormalizeText(content))
}

// Fingerprint hashes a task from its status, cleaned text and child lines.
// The text and every child line are normalized on their own, so volatile
// tokens at the end of either never leave residue in the digest.
func Fingerprint(status, clean string, children []string) string {
	var kids []string
	for _, line := range strings.Split(NormalizeBlockContent(children), "\n") {
		if n := NormalizeText(line); n != "" {
			kids = append(kids, n)
		}
	}
	return digest(status, NormalizeText(clean)+"|||"+strings.Join(kids, "\n"))
}

func digest(status, normalized string) string {
	sum := md5.Sum([]byte(strings.TrimSpace(status) + "|" + normalized))
	return hex.EncodeToString(sum[:])
}
