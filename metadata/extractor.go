package metadata

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/streambinder/youterm/entity"
)

type Metadata struct {
	Artist string // empty if not found
	Title  string // canonical form
	Type   entity.TrackType
}

var (
	brackets   = regexp.MustCompile(`[\(\[\{]([^\)\]\}]*)[\)\]\}]`)
	delimiters = regexp.MustCompile(`\s+[-–—|]\s+|\s*\|\s*`)
	byline     = regexp.MustCompile(`(?i)^(.+?)\s+by\s+(.+)$`)
	featuring  = regexp.MustCompile(`(?i)\s*\b(ft\.?|feat\.?|featuring)(\s+|$).*$`)
	noise      = regexp.MustCompile(`(?i)\b(official (music |lyric )?video|official audio|official|lyric video|lyrics?|hd|hq|4k|high quality|visuali[sz]er|remaster(ed)?)\b`)
	spaces     = regexp.MustCompile(`\s+`)
	tagCover   = regexp.MustCompile(`(?i)\bcover\b`)
	tagLive    = regexp.MustCompile(`(?i)\blive\b`)
	tagRemix   = regexp.MustCompile(`(?i)\b(remix|rmx|bootleg|flip)\b`)
	channelEnd = regexp.MustCompile(`(?i)(\s*-\s*topic|vevo|\s+official|\s+music|\s+records|\s+entertainment|\s+tv)$`)
)

// swapMargin is how much closer to the channel name the right-hand part
// of a split title must be before it is taken as the artist
const swapMargin = 0.2

// Extract guesses artist, canonical title and variant of an upload
// out of its raw title and channel name. Same input, same output.
func Extract(rawTitle, channel string) Metadata {
	var (
		tags = brackets.FindAllStringSubmatch(rawTitle, -1)
		base = strings.TrimSpace(brackets.ReplaceAllString(rawTitle, " "))
		hint = CleanChannel(channel)
	)

	labels := make([]string, 0, len(tags)+1)
	for _, tag := range tags {
		labels = append(labels, tag[1])
	}

	parts := splitParts(base)
	if len(parts) < 2 {
		if match := byline.FindStringSubmatch(base); match != nil && hint != "" &&
			Similarity(match[2], hint) >= 0.6 {
			parts = []string{match[2], match[1]}
		}
	}

	if len(parts) < 2 {
		title := Normalize(stripFeaturing(base))
		if title == "" {
			title = Normalize(rawTitle)
		}
		return Metadata{Title: title, Type: guessType(labels, false)}
	}

	artist, title := parts[0], parts[1]
	// anything past the second delimiter is usually a variant
	// description, e.g. "Artist - Song - Live at Wembley"
	labels = append(labels, parts[2:]...)
	if hint != "" && Similarity(title, hint) > Similarity(artist, hint)+swapMargin {
		artist, title = title, artist
	}

	artist = spaces.ReplaceAllString(strings.TrimSpace(stripFeaturing(artist)), " ")
	title = Normalize(stripFeaturing(title))
	if title == "" {
		return Metadata{Title: Normalize(rawTitle), Type: guessType(labels, false)}
	}
	return Metadata{Artist: artist, Title: title, Type: guessType(labels, true)}
}

func splitParts(title string) []string {
	var parts []string
	for _, part := range delimiters.Split(title, -1) {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func stripFeaturing(value string) string {
	return featuring.ReplaceAllString(value, "")
}

func guessType(labels []string, split bool) entity.TrackType {
	label := strings.Join(labels, " ")
	switch {
	case tagCover.MatchString(label):
		return entity.Cover
	case tagLive.MatchString(label):
		return entity.Live
	case tagRemix.MatchString(label):
		return entity.Remix
	case split:
		return entity.Studio
	default:
		return entity.Unknown
	}
}

// Normalize lower-cases a title, drops decorations such as
// "official video" and folds punctuation into single spaces
func Normalize(title string) string {
	title = strings.ToLower(title)
	title = brackets.ReplaceAllString(title, " ")
	title = noise.ReplaceAllString(title, " ")
	title = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			return r
		}
		return ' '
	}, title)
	title = strings.ReplaceAll(title, "'", "")
	return strings.TrimSpace(spaces.ReplaceAllString(title, " "))
}

// CleanChannel strips the decorations labels and auto-generated
// channels append to artist names: "QueenVEVO", "Queen - Topic"
func CleanChannel(channel string) string {
	channel = strings.TrimSpace(channel)
	for {
		trimmed := strings.TrimSpace(channelEnd.ReplaceAllString(channel, ""))
		if trimmed == channel {
			break
		}
		channel = trimmed
	}
	return strings.ToLower(channel)
}

// Similarity is the normalized levenshtein similarity of
// two strings, compared case and punctuation insensitively
func Similarity(a, b string) float64 {
	a, b = Normalize(a), Normalize(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
