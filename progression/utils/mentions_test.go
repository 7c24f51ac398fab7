package utils

import (
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
)

func TestParseSnowflakes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []snowflake.ID
	}{
		{"mentions", "<@123456789012345678> <@!223456789012345678>", []snowflake.ID{123456789012345678, 223456789012345678}},
		{"raw ids with commas", "123456789012345678,323456789012345678", []snowflake.ID{123456789012345678, 323456789012345678}},
		{"duplicates dropped", "<@123456789012345678> 123456789012345678", []snowflake.ID{123456789012345678}},
		{"short numbers ignored", "give 500 to everyone", nil},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSnowflakes(tt.in))
		})
	}
}

func TestParseEmoji(t *testing.T) {
	assert.Equal(t, "112233445566778899", ParseEmoji("<:star:112233445566778899>"))
	assert.Equal(t, "112233445566778899", ParseEmoji(" <a:spin:112233445566778899> "))
	assert.Equal(t, "⭐", ParseEmoji(" ⭐ "))
}
