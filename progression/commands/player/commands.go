package player

import "github.com/disgoorg/disgo/discord"

var Commands = []discord.ApplicationCommandCreate{
	User,
	Draw,
	Leaderboard,
}
