package utils

import (
	"regexp"
	"strings"

	"github.com/disgoorg/snowflake/v2"
)

var snowflakePattern = regexp.MustCompile(`\d{15,21}`)

// ParseSnowflakes extracts ids from free text holding mentions or raw ids,
// in order of appearance and without duplicates.
func ParseSnowflakes(text string) []snowflake.ID {
	var ids []snowflake.ID
	seen := make(map[snowflake.ID]bool)
	for _, raw := range snowflakePattern.FindAllString(text, -1) {
		id, err := snowflake.Parse(raw)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

var customEmojiPattern = regexp.MustCompile(`^<a?:\w+:(\d+)>$`)

// ParseEmoji returns the id of a custom emoji like <:name:123>, or the
// trimmed text for unicode emoji.
func ParseEmoji(text string) string {
	text = strings.TrimSpace(text)
	if m := customEmojiPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}
