package system

import (
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/disgoorg/progression-bot/progression"
	"github.com/disgoorg/progression-bot/progression/utils"
)

var Version = discord.SlashCommandCreate{
	Name:        "version",
	Description: "Show the running bot version",
}

func VersionHandler(b *progression.Bot) handler.CommandHandler {
	started := time.Now()
	return func(e *handler.CommandEvent) error {
		if err := e.DeferCreateMessage(true); err != nil {
			return err
		}
		_, err := e.UpdateInteractionResponse(discord.MessageUpdate{
			Content: utils.Ptr(fmt.Sprintf("Version: %s\nCommit: %s\nUp: %s",
				b.Version, b.Commit, time.Since(started).Round(time.Second))),
		})
		return err
	}
}
