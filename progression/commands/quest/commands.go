package quest

import (
	"github.com/disgoorg/disgo/discord"
)

var Quest = discord.SlashCommandCreate{
	Name:        "quest",
	Description: "Community quests",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "list",
			Description: "Quests you can accept right now",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "accept",
			Description: "Take on a quest",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:         "quest",
					Description:  "Quest name or id",
					Required:     true,
					Autocomplete: true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "current",
			Description: "Show the quest you are working on",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "submit",
			Description: "Hand in your current quest for review",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "drop",
			Description: "Abandon your current quest",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "publish",
			Description: "Publish a new quest (moderators)",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "Quest title",
					Required:    true,
					MaxLength:   &[]int{100}[0],
				},
				discord.ApplicationCommandOptionString{
					Name:        "description",
					Description: "What has to be done",
					Required:    true,
				},
				discord.ApplicationCommandOptionInt{
					Name:        "exp",
					Description: "Exp reward",
					Required:    false,
					MinValue:    &[]int{0}[0],
				},
				discord.ApplicationCommandOptionInt{
					Name:        "silver",
					Description: "Silver reward",
					Required:    false,
					MinValue:    &[]int{0}[0],
				},
				discord.ApplicationCommandOptionString{
					Name:        "reward",
					Description: "Describe any non-currency reward",
					Required:    false,
				},
				discord.ApplicationCommandOptionString{
					Name:        "duration",
					Description: "How long it stays open, e.g. 1w2d (default 30 days)",
					Required:    false,
				},
				discord.ApplicationCommandOptionBool{
					Name:        "multiple",
					Description: "Allow several players to hold it at once",
					Required:    false,
				},
				discord.ApplicationCommandOptionBool{
					Name:        "repeatable",
					Description: "Allow completing it again",
					Required:    false,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "pending",
			Description: "Submissions waiting for review (moderators)",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "approve",
			Description: "Approve a submission and pay its reward (moderators)",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "record",
					Description: "Record number from /quest pending",
					Required:    true,
					MinValue:    &[]int{1}[0],
				},
				discord.ApplicationCommandOptionInt{
					Name:        "exp",
					Description: "Pay this exp instead of the quest reward",
					Required:    false,
					MinValue:    &[]int{1}[0],
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "reject",
			Description: "Reject a submission (moderators)",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "record",
					Description: "Record number from /quest pending",
					Required:    true,
					MinValue:    &[]int{1}[0],
				},
			},
		},
	},
}

var Commands = []discord.ApplicationCommandCreate{
	Quest,
}
