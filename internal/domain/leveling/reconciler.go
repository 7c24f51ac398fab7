package leveling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/disgoorg/progression-bot/internal/domain/guildconfig"
	"github.com/disgoorg/progression-bot/internal/metrics"
	"github.com/disgoorg/progression-bot/progression/logger"
)

// RoleManager mutates guild member roles.
type RoleManager interface {
	MemberRoles(ctx context.Context, guildID, userID string) ([]string, error)
	AddRole(ctx context.Context, guildID, userID, roleID, reason string) error
	RemoveRole(ctx context.Context, guildID, userID, roleID, reason string) error
}

type SettingsSource interface {
	Settings(ctx context.Context, guildID string) (*guildconfig.Settings, error)
}

type Member struct {
	GuildID string
	UserID  string
	RoleIDs []string
}

// Mapping binds milestone levels to roles, plus the optional role held by
// players at or above the double threshold.
type Mapping struct {
	Levels          map[int]string
	DoubleRole      string
	DoubleThreshold int64
}

func MappingFrom(s *guildconfig.Settings) Mapping {
	return Mapping{
		Levels:          s.LevelRoleMapping(),
		DoubleRole:      s.ExpDoubleRole(),
		DoubleThreshold: s.DoubleThreshold(),
	}
}

func (m Mapping) milestones() []int {
	levels := make([]int, 0, len(m.Levels))
	for level := range m.Levels {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	return levels
}

// highest returns the highest milestone covered by exp, or 0.
func (m Mapping) highest(exp int64) int {
	top := 0
	for _, level := range m.milestones() {
		if exp >= RequiredExp(level) {
			top = level
		}
	}
	return top
}

// MilestoneChanged reports whether moving from before to after changes the
// roles a player should hold.
func (m Mapping) MilestoneChanged(before, after int64) bool {
	if m.highest(before) != m.highest(after) {
		return true
	}
	if m.DoubleRole != "" && (before >= m.DoubleThreshold) != (after >= m.DoubleThreshold) {
		return true
	}
	return false
}

// Plan computes the role changes for exp without touching Discord.
func (m Mapping) Plan(exp int64, held []string) (add []string, remove []string) {
	milestones := m.milestones()

	var qualifying []string
	for _, level := range milestones {
		if exp >= RequiredExp(level) {
			qualifying = append(qualifying, m.Levels[level])
		}
	}

	var toRemove, toAdd []string
	if len(qualifying) > 1 {
		toRemove = append(toRemove, qualifying[:len(qualifying)-1]...)
		qualifying = qualifying[len(qualifying)-1:]
	}
	toAdd = qualifying

	if len(milestones) > 0 && exp < RequiredExp(milestones[0]) {
		lowest := m.Levels[milestones[0]]
		if !slices.Contains(toRemove, lowest) {
			toRemove = append(toRemove, lowest)
		}
	}

	if m.DoubleRole != "" {
		if exp >= m.DoubleThreshold {
			toAdd = append(toAdd, m.DoubleRole)
		} else {
			toRemove = append(toRemove, m.DoubleRole)
		}
	}

	for _, id := range toRemove {
		if slices.Contains(held, id) && !slices.Contains(toAdd, id) {
			remove = append(remove, id)
		}
	}
	for _, id := range toAdd {
		if !slices.Contains(held, id) && !slices.Contains(add, id) {
			add = append(add, id)
		}
	}
	return add, remove
}

type Result struct {
	Added   []string
	Removed []string
}

type Reconciler struct {
	roles    RoleManager
	settings SettingsSource
}

func NewReconciler(roles RoleManager, settings SettingsSource) *Reconciler {
	return &Reconciler{roles: roles, settings: settings}
}

// Reconcile applies the planned changes, removals first. A failed call is
// logged and does not stop the remaining calls; all failures are returned
// joined.
func (r *Reconciler) Reconcile(ctx context.Context, member Member, exp int64, mapping Mapping) (Result, error) {
	add, remove := mapping.Plan(exp, member.RoleIDs)
	reason := fmt.Sprintf("level sync at %d exp", exp)

	var result Result
	var errs []error
	for _, roleID := range remove {
		if err := r.roles.RemoveRole(ctx, member.GuildID, member.UserID, roleID, reason); err != nil {
			errs = append(errs, r.logFailure("remove", member, roleID, err))
			continue
		}
		metrics.RoleMutations.WithLabelValues("remove", "success").Inc()
		result.Removed = append(result.Removed, roleID)
	}
	for _, roleID := range add {
		if err := r.roles.AddRole(ctx, member.GuildID, member.UserID, roleID, reason); err != nil {
			errs = append(errs, r.logFailure("add", member, roleID, err))
			continue
		}
		metrics.RoleMutations.WithLabelValues("add", "success").Inc()
		result.Added = append(result.Added, roleID)
	}

	if len(result.Added) > 0 || len(result.Removed) > 0 {
		logger.LogEconomy("Level roles reconciled",
			slog.String("guild_id", member.GuildID),
			slog.String("user_id", member.UserID),
			slog.Int64("exp", exp),
			slog.Any("added", result.Added),
			slog.Any("removed", result.Removed))
	}
	return result, errors.Join(errs...)
}

// ReconcileUser loads the guild mapping and the member's roles, then
// reconciles.
func (r *Reconciler) ReconcileUser(ctx context.Context, guildID, userID string, exp int64) (Result, error) {
	settings, err := r.settings.Settings(ctx, guildID)
	if err != nil {
		return Result{}, err
	}
	mapping := MappingFrom(settings)
	if len(mapping.Levels) == 0 && mapping.DoubleRole == "" {
		return Result{}, nil
	}

	roles, err := r.roles.MemberRoles(ctx, guildID, userID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load member roles: %w", err)
	}
	return r.Reconcile(ctx, Member{GuildID: guildID, UserID: userID, RoleIDs: roles}, exp, mapping)
}

// Sync reconciles only when the change crossed a milestone.
func (r *Reconciler) Sync(ctx context.Context, guildID, userID string, before, after int64) {
	settings, err := r.settings.Settings(ctx, guildID)
	if err != nil {
		logger.LogError("Failed to load guild config for role sync",
			err,
			slog.String("guild_id", guildID))
		return
	}
	if !MappingFrom(settings).MilestoneChanged(before, after) {
		return
	}
	if _, err := r.ReconcileUser(ctx, guildID, userID, after); err != nil {
		logger.LogEconomyWarn("Level role sync incomplete",
			slog.String("guild_id", guildID),
			slog.String("user_id", userID),
			slog.Any("error", err))
	}
}

func (r *Reconciler) logFailure(op string, member Member, roleID string, err error) error {
	metrics.RoleMutations.WithLabelValues(op, "failed").Inc()
	logger.LogError("Failed to update level role",
		err,
		slog.String("op", op),
		slog.String("guild_id", member.GuildID),
		slog.String("user_id", member.UserID),
		slog.String("role_id", roleID))
	return fmt.Errorf("%s role %s: %w", op, roleID, err)
}
