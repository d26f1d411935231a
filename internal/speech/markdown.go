package speech

import (
	"regexp"
	"strings"
)

// Markdown constructs that must not reach the narrator. Order matters:
// block-level constructs are removed before inline emphasis so that, for
// example, a bold heading loses both its marker and its asterisks. The
// italic markers only count at word boundaries, so snake_case identifiers
// in a summary keep their underscores.
var (
	reCodeBlock     = regexp.MustCompile("(?s)```.*?```")
	reInlineCode    = regexp.MustCompile("`([^`]*)`")
	reImage         = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	reLink          = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	reHeading       = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reBlockquote    = regexp.MustCompile(`(?m)^>\s?`)
	reListMarker    = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	reOrderedList   = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	reHorizontal    = regexp.MustCompile(`(?m)^\s*([-*_]\s*){3,}$`)
	reBold          = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
	reItalicStar    = regexp.MustCompile(`(?m)(^|\s)\*([^*\n]+?)\*(\s|$)`)
	reItalicUnder   = regexp.MustCompile(`(?m)(^|\s)_([^_\n]+?)_(\s|$)`)
	reStrikethrough = regexp.MustCompile(`~~([^~]+)~~`)
	reMultiNewline  = regexp.MustCompile(`\n{3,}`)
	reMultiSpace    = regexp.MustCompile(`[ \t]{2,}`)
)

// StripMarkdown reduces markdown to plain prose suitable for narration.
func StripMarkdown(text string) string {
	text = reCodeBlock.ReplaceAllString(text, "")
	text = reInlineCode.ReplaceAllString(text, "$1")
	text = reImage.ReplaceAllString(text, "$1")
	text = reLink.ReplaceAllString(text, "$1")
	text = reHeading.ReplaceAllString(text, "")
	text = reBlockquote.ReplaceAllString(text, "")
	text = reHorizontal.ReplaceAllString(text, "")
	text = reListMarker.ReplaceAllString(text, "")
	text = reOrderedList.ReplaceAllString(text, "")
	text = reBold.ReplaceAllString(text, "$1$2")
	text = reItalicStar.ReplaceAllString(text, "$1$2$3")
	text = reItalicUnder.ReplaceAllString(text, "$1$2$3")
	text = reStrikethrough.ReplaceAllString(text, "$1")
	text = reMultiNewline.ReplaceAllString(text, "\n\n")
	text = reMultiSpace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
