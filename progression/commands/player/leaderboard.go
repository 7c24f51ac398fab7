package player

import (
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"
	gocache "github.com/patrickmn/go-cache"

	"github.com/disgoorg/progression-bot/internal/domain/leveling"
	"github.com/disgoorg/progression-bot/progression"
	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/database/repositories"
	"github.com/disgoorg/progression-bot/progression/utils"
)

const leaderboardSize = 100

var Leaderboard = discord.SlashCommandCreate{
	Name:        "leaderboard",
	Description: "Top players of this server by exp",
}

func LeaderboardHandler(b *progression.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		guildID := e.GuildID().String()
		top, err := cachedTop(ctx, b, guildID)
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}
		if len(top) == 0 {
			return utils.EH.CreateInfoEmbed(e, "Nobody has earned exp here yet.")
		}

		self := models.PlayerID(e.User().ID.String(), guildID)
		totalPages := (len(top) + utils.LeaderboardPerPage - 1) / utils.LeaderboardPerPage

		return b.Paginator.Create(e.Respond, paginator.Pages{
			ID:      e.ID().String(),
			Creator: e.User().ID,
			PageFunc: func(page int, embed *discord.EmbedBuilder) {
				start := page * utils.LeaderboardPerPage
				end := min(start+utils.LeaderboardPerPage, len(top))

				var description strings.Builder
				for i, p := range top[start:end] {
					line := fmt.Sprintf("%s <@%s> · Lv.%d · %s exp",
						placeOf(start+i), p.UserID, leveling.LevelOf(p.Exp), utils.FormatNumber(p.Exp))
					if p.ID == self {
						line = "**" + line + "**"
					}
					description.WriteString(line + "\n")
				}

				embed.
					SetTitle("🏆 Leaderboard").
					SetDescription(description.String()).
					SetColor(utils.GoldColor).
					SetFooter(fmt.Sprintf("Page %d/%d • %d players", page+1, totalPages, len(top)), "")
			},
			Pages:      totalPages,
			ExpireMode: paginator.ExpireModeAfterLastUsage,
		}, false)
	}
}

func cachedTop(ctx context.Context, b *progression.Bot, guildID string) ([]*models.Player, error) {
	if cached, ok := b.Leaderboard.Get(guildID); ok {
		return cached.([]*models.Player), nil
	}
	top, err := repositories.NewPlayerRepository(b.DB.BunDB()).TopByExp(ctx, guildID, leaderboardSize)
	if err != nil {
		return nil, err
	}
	b.Leaderboard.Set(guildID, top, gocache.DefaultExpiration)
	return top, nil
}

func placeOf(i int) string {
	switch i {
	case 0:
		return "🥇"
	case 1:
		return "🥈"
	case 2:
		return "🥉"
	}
	return fmt.Sprintf("`#%d`", i+1)
}
