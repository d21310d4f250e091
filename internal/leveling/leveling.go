// Package leveling maps experience totals to character levels.
package leveling

import (
	"math"
	"sort"
)

// MaxPlayerLevel is the level cap
const MaxPlayerLevel = 50

// thresholds[n] is the total XP a character needs to be level n+1
var thresholds = func() []int {
	t := make([]int, MaxPlayerLevel)
	for lvl := 2; lvl <= MaxPlayerLevel; lvl++ {
		t[lvl-1] = curve(lvl)
	}
	return t
}()

// curve is 100 * level^1.5, truncated
func curve(level int) int {
	return int(100 * math.Pow(float64(level), 1.5))
}

// XPForLevel returns the total XP needed to reach level
func XPForLevel(level int) int {
	switch {
	case level <= 1:
		return 0
	case level <= MaxPlayerLevel:
		return thresholds[level-1]
	default:
		return curve(level)
	}
}

// LevelForXP returns the level reached with xp total experience
func LevelForXP(xp int) int {
	// first level whose threshold is out of reach
	n := sort.Search(len(thresholds), func(i int) bool { return thresholds[i] > xp })
	if n == 0 {
		return 1
	}
	return n
}

// XPToNextLevel returns the XP span between level and level+1, or 0 at the cap
func XPToNextLevel(level int) int {
	if level >= MaxPlayerLevel {
		return 0
	}
	return XPForLevel(level+1) - XPForLevel(level)
}

// Progress describes where an experience total sits within its level
type Progress struct {
	Level     int `json:"level"`
	IntoLevel int `json:"into_level"` // XP earned since reaching Level
	Remaining int `json:"remaining"`  // XP still needed for Level+1; 0 at the cap
}

// ProgressFor returns the level progress for xp total experience
func ProgressFor(xp int) Progress {
	if xp < 0 {
		xp = 0
	}
	level := LevelForXP(xp)
	p := Progress{Level: level, IntoLevel: xp - XPForLevel(level)}
	if level < MaxPlayerLevel {
		p.Remaining = XPForLevel(level+1) - xp
	}
	return p
}

// LevelUpInfo records one level gained
type LevelUpInfo struct {
	NewLevel int
}
