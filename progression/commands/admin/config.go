package admin

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/snowflake/v2"

	"github.com/disgoorg/progression-bot/internal/domain/guildconfig"
	"github.com/disgoorg/progression-bot/internal/domain/missions"
	"github.com/disgoorg/progression-bot/internal/domain/quests"
	"github.com/disgoorg/progression-bot/progression"
	"github.com/disgoorg/progression-bot/progression/database/models"
	"github.com/disgoorg/progression-bot/progression/utils"
)

func keyChoices() []discord.ApplicationCommandOptionChoiceString {
	names := make([]string, 0, len(guildconfig.KnownKeys))
	for name := range guildconfig.KnownKeys {
		names = append(names, name)
	}
	sort.Strings(names)

	choices := make([]discord.ApplicationCommandOptionChoiceString, len(names))
	for i, name := range names {
		choices[i] = discord.ApplicationCommandOptionChoiceString{Name: name, Value: name}
	}
	return choices
}

var Config = discord.SlashCommandCreate{
	Name:        "config",
	Description: "Server economy settings (administrators)",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "add",
			Description: "Add a channel or role to a list, or set a value",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "Setting",
					Required:    true,
					Choices:     keyChoices(),
				},
				discord.ApplicationCommandOptionString{
					Name:        "value",
					Description: "Channel or role mention, id, or a JSON value",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "del",
			Description: "Remove a setting",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "Setting",
					Required:    true,
					Choices:     keyChoices(),
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "show",
			Description: "Show every stored setting",
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "mission",
			Description: "Create, update or remove a reaction mission",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "reward",
					Description: "Reward per completion, 0 removes the mission",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:         "mission",
					Description:  "Existing mission to update or remove",
					Required:     false,
					Autocomplete: true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "Mission title",
					Required:    false,
				},
				discord.ApplicationCommandOptionChannel{
					Name:        "channel",
					Description: "Channel to watch",
					Required:    false,
				},
				discord.ApplicationCommandOptionString{
					Name:        "emoji",
					Description: "Reaction that completes the mission",
					Required:    false,
				},
				discord.ApplicationCommandOptionString{
					Name:        "type",
					Description: "Reward currency",
					Required:    false,
					Choices: []discord.ApplicationCommandOptionChoiceString{
						{Name: "Exp", Value: string(models.CurrencyExp)},
						{Name: "Silver", Value: string(models.CurrencySilver)},
					},
				},
				discord.ApplicationCommandOptionBool{
					Name:        "repeatable",
					Description: "Allow one completion per day (default) or, when false, one ever",
					Required:    false,
				},
				discord.ApplicationCommandOptionString{
					Name:        "description",
					Description: "Shown in /config mshow",
					Required:    false,
				},
				discord.ApplicationCommandOptionString{
					Name:        "duration",
					Description: "How long it runs, e.g. 4w (default one year)",
					Required:    false,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "mshow",
			Description: "List the reaction missions",
		},
	},
}

func requireAdmin(e *handler.CommandEvent) (bool, error) {
	if utils.IsAdmin(e) {
		return true, nil
	}
	return false, utils.EH.CreatePermissionError(e, "change server settings")
}

func ConfigAddHandler(b *progression.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if ok, err := requireAdmin(e); !ok {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		data := e.SlashCommandInteractionData()
		name := data.String("name")
		typ, known := guildconfig.KnownKeys[name]
		if !known {
			return utils.EH.CreateUserError(e, fmt.Sprintf("Unknown setting %q.", name))
		}

		value := strings.TrimSpace(data.String("value"))
		if typ != models.ConfigValue {
			ids := utils.ParseSnowflakes(value)
			if len(ids) != 1 {
				return utils.EH.CreateUserError(e, fmt.Sprintf("%s takes a single %s mention or id.", name, typ))
			}
			value = ids[0].String()
		}

		item, err := b.GuildConfig.Add(ctx, e.GuildID().String(), name, typ, value)
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}
		return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf("⚙️ **%s** is now `%s`", item.Name, item.Value))
	}
}

func ConfigDelHandler(b *progression.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if ok, err := requireAdmin(e); !ok {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		name := e.SlashCommandInteractionData().String("name")
		if err := b.GuildConfig.Delete(ctx, e.GuildID().String(), name); err != nil {
			return utils.EH.HandleDomainError(e, err)
		}
		return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf("🗑️ **%s** removed", name))
	}
}

func ConfigShowHandler(b *progression.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if ok, err := requireAdmin(e); !ok {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		settings, err := b.GuildConfig.Settings(ctx, e.GuildID().String())
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}

		var sb strings.Builder
		for _, item := range settings.Items() {
			fmt.Fprintf(&sb, "**%s** (%s): `%s`\n", item.Name, item.Type, item.Value)
		}
		if sb.Len() == 0 {
			sb.WriteString("Nothing configured yet.\n")
		}
		defaults := b.GuildConfig.Defaults()
		fmt.Fprintf(&sb, "\n-# Effective: double threshold %d · draw cost %d · %d draws per period",
			settings.DoubleThreshold(), settings.DrawCost(), settings.MonthlyDrawLimit())
		fmt.Fprintf(&sb, "\n-# Defaults: %d · %d · %d", defaults.DoubleThreshold, defaults.DrawCost, defaults.MonthlyDrawLimit)

		return e.CreateMessage(discord.NewMessageCreateBuilder().
			SetEmbeds(discord.NewEmbedBuilder().
				SetTitle("⚙️ Server Settings").
				SetDescription(sb.String()).
				SetColor(utils.InfoColor).
				Build()).
			SetEphemeral(true).
			Build())
	}
}

func ConfigMissionHandler(b *progression.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if ok, err := requireAdmin(e); !ok {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		data := e.SlashCommandInteractionData()
		guildID := e.GuildID().String()
		def := missions.Definition{
			GuildID:     guildID,
			PublisherID: models.PlayerID(e.User().ID.String(), guildID),
			Reward:      int64(data.Int("reward")),
		}
		def.QuestID, _ = data.OptString("mission")
		def.Name, _ = data.OptString("name")
		def.Description, _ = data.OptString("description")
		repeatable, repeatableSet := data.OptBool("repeatable")
		def.OnceOnly = repeatableSet && !repeatable
		if ch, ok := data.OptChannel("channel"); ok {
			def.ChannelID = ch.ID.String()
		}
		if emoji, ok := data.OptString("emoji"); ok {
			def.EmojiID = utils.ParseEmoji(emoji)
		}
		if typ, ok := data.OptString("type"); ok {
			def.RewardType = models.Currency(typ)
		}
		if text, ok := data.OptString("duration"); ok {
			d, valid := quests.ParseDuration(strings.TrimSpace(text))
			if !valid {
				return utils.EH.CreateUserError(e, fmt.Sprintf("Cannot read duration %q, use something like 2w3d.", text))
			}
			def.Duration = d
		}

		if def.QuestID != "" && def.Reward > 0 {
			fillFromExisting(ctx, b, &def, repeatableSet)
		}

		entry, err := b.Missions.Configure(ctx, def)
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}
		if entry == nil {
			return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf("🗑️ Mission `%s` removed", def.QuestID))
		}
		return utils.EH.CreateSuccessEmbed(e, fmt.Sprintf("🎯 **%s** · `%s`\n%s",
			entry.Quest.Name, entry.Quest.ID, missionLine(entry.Mission)))
	}
}

// fillFromExisting keeps the stored fields of a mission the update leaves out.
func fillFromExisting(ctx context.Context, b *progression.Bot, def *missions.Definition, repeatableSet bool) {
	entries, err := b.Missions.List(ctx, def.GuildID)
	if err != nil {
		slog.Warn("Could not load missions for update",
			slog.String("type", "cmd"),
			slog.String("guild_id", def.GuildID),
			slog.Any("error", err))
		return
	}
	for _, entry := range entries {
		if entry.Mission.QuestID != def.QuestID {
			continue
		}
		if def.ChannelID == "" {
			def.ChannelID = entry.Mission.ChannelID
		}
		if def.EmojiID == "" {
			def.EmojiID = entry.Mission.EmojiID
		}
		if def.RewardType == "" {
			def.RewardType = entry.Mission.RewardType
		}
		if q := entry.Quest; q != nil {
			if def.Name == "" {
				def.Name = q.Name
			}
			if def.Description == "" {
				def.Description = q.Description
			}
			if !repeatableSet {
				def.OnceOnly = !q.Repeatable
			}
		}
		return
	}
}

func ConfigMissionAutocomplete(b *progression.Bot) handler.AutocompleteHandler {
	return func(e *handler.AutocompleteEvent) error {
		if e.GuildID() == nil {
			return e.AutocompleteResult([]discord.AutocompleteChoice{})
		}
		focused := e.Data.Focused()
		if focused.Name != "mission" {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		entries, err := b.Missions.List(ctx, e.GuildID().String())
		if err != nil {
			slog.Error("Failed to load missions for autocomplete",
				slog.String("type", "cmd"),
				slog.Any("error", err))
			return e.AutocompleteResult([]discord.AutocompleteChoice{})
		}

		known := make([]*models.Quest, 0, len(entries))
		for _, entry := range entries {
			if entry.Quest != nil {
				known = append(known, entry.Quest)
			}
		}
		return e.AutocompleteResult(utils.QuestChoices(utils.FocusedString(focused.Value), known))
	}
}

func ConfigMissionShowHandler(b *progression.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if ok, err := requireAdmin(e); !ok {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		entries, err := b.Missions.List(ctx, e.GuildID().String())
		if err != nil {
			return utils.EH.HandleDomainError(e, err)
		}
		if len(entries) == 0 {
			return utils.EH.CreateInfoEmbed(e, "No reaction missions are configured.")
		}

		embed := discord.NewEmbedBuilder().
			SetTitle("🎯 Reaction Missions").
			SetColor(utils.InfoColor)
		for _, entry := range entries[:min(len(entries), 25)] {
			title := "`" + entry.Mission.QuestID + "`"
			value := missionLine(entry.Mission)
			if q := entry.Quest; q != nil {
				title = q.Name + " · " + title
				if q.Repeatable {
					value += " · daily"
				}
				value += "\nEnds " + utils.Timestamp(q.ExpireDate)
			}
			embed.AddField(title, value, false)
		}
		return e.CreateMessage(discord.NewMessageCreateBuilder().SetEmbeds(embed.Build()).Build())
	}
}

func missionLine(m guildconfig.Mission) string {
	emoji := m.EmojiID
	if _, err := snowflake.Parse(emoji); err == nil {
		emoji = "<:e:" + emoji + ">"
	}
	return fmt.Sprintf("<#%s> %s → %s %s", m.ChannelID, emoji, utils.FormatNumber(m.Reward), m.RewardType)
}
