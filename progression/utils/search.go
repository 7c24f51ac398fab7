package utils

import (
	"encoding/json"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/sahilm/fuzzy"

	"github.com/disgoorg/progression-bot/progression/database/models"
)

// MaxChoices is Discord's cap on autocomplete results.
const MaxChoices = 25

// QuestItems implements fuzzy.Source over quest names.
type QuestItems []*models.Quest

func (items QuestItems) Len() int {
	return len(items)
}

func (items QuestItems) String(i int) string {
	return strings.ToLower(items[i].Name)
}

// SearchQuests ranks quests by fuzzy match on their name. An empty query
// keeps the input order.
func SearchQuests(query string, quests []*models.Quest) []*models.Quest {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return quests
	}

	matches := fuzzy.FindFrom(query, QuestItems(quests))
	out := make([]*models.Quest, 0, len(matches))
	for _, m := range matches {
		out = append(out, quests[m.Index])
	}

	// ids typed verbatim still resolve
	if len(out) == 0 {
		for _, q := range quests {
			if strings.EqualFold(q.ID, query) {
				out = append(out, q)
			}
		}
	}
	return out
}

// QuestChoices turns the best matches into autocomplete choices valued by
// quest id.
func QuestChoices(query string, quests []*models.Quest) []discord.AutocompleteChoice {
	ranked := SearchQuests(query, quests)
	choices := make([]discord.AutocompleteChoice, 0, min(len(ranked), MaxChoices))
	for _, q := range ranked {
		if len(choices) == MaxChoices {
			break
		}
		name := q.Name
		if len(name) > 90 {
			name = name[:90]
		}
		choices = append(choices, discord.AutocompleteChoiceString{
			Name:  name + " (" + q.ID + ")",
			Value: q.ID,
		})
	}
	return choices
}

// FocusedString decodes the value of a focused string option.
func FocusedString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
