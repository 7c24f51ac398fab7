package leveling

const (
	UnqualifiedRank = "Unproven (finish the starter mission)"
	UnrankedRank    = "Unranked"
)

type rankRange struct {
	min, max int
	name     string
}

var ranks = []rankRange{
	{1, 4, "Novice"},
	{5, 9, "Apprentice"},
	{10, 14, "Initiate"},
	{15, 19, "Adept"},
	{20, 24, "Practitioner"},
	{25, 29, "Proficient"},
	{30, 34, "Outstanding"},
	{35, 39, "Refined"},
	{40, 44, "Accomplished"},
	{45, 49, "Renowned"},
	{50, 54, "Transcendent"},
	{55, 59, "Pinnacle"},
	{60, 64, "Peerless"},
	{65, 69, "Sovereign"},
	{70, 74, "Storm Bringer"},
	{75, 79, "Unrivaled"},
	{80, 84, "Void Breaker"},
	{85, 89, "Heaven Bound"},
	{90, 94, "Sage"},
	{95, 99, "Returned to Origin"},
	{100, 104, "Great Way"},
	{105, 109, "All in One"},
	{110, 114, "Boundless"},
	{115, 119, "Star Shifter"},
	{120, 124, "Void Walker"},
	{125, 129, "Primordial"},
	{130, 134, "Wheel of Heaven"},
	{135, 139, "Source of Laws"},
	{140, 144, "Cosmic Dawn"},
	{145, 149, "Eternal Realm"},
	{150, 154, "Creator"},
	{155, 159, "Master of Time"},
	{160, 164, "Dimension Keeper"},
	{165, 169, "Fate Weaver"},
	{170, 174, "Origin of All"},
	{175, 179, "Infinite Summit"},
	{180, 184, "Beyond the Cycle"},
	{185, 189, "Ultimate Truth"},
	{190, 194, "Everlasting"},
	{195, 199, "Endless Legend"},
	{200, MaxLevel, "Surely Not Human"},
}

// RankNameOf labels a level. Level 0 marks a player who has not qualified yet.
func RankNameOf(level int) string {
	if level == 0 {
		return UnqualifiedRank
	}
	for _, r := range ranks {
		if level >= r.min && level <= r.max {
			return r.name
		}
	}
	return UnrankedRank
}

// DisplayLevel is the level shown to players: 0 until they hold one of the
// qualifying roles, when such roles are configured.
func DisplayLevel(exp int64, qualifiedRoles, memberRoles []string) int {
	if len(qualifiedRoles) > 0 {
		qualified := false
		for _, id := range memberRoles {
			for _, q := range qualifiedRoles {
				if id == q {
					qualified = true
				}
			}
		}
		if !qualified {
			return 0
		}
	}
	return LevelOf(exp)
}
