// Package host is the boundary with the game server platform: player handles,
// inventories, command dispatch and the main tick scheduler.
package host

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Location is a position in a world
type Location struct {
	World string  `yaml:"world" json:"world"`
	X     float64 `yaml:"x" json:"x"`
	Y     float64 `yaml:"y" json:"y"`
	Z     float64 `yaml:"z" json:"z"`
	Yaw   float32 `yaml:"yaw,omitempty" json:"yaw,omitempty"`
	Pitch float32 `yaml:"pitch,omitempty" json:"pitch,omitempty"`
}

// Block returns the block position containing the location
func (l Location) Block() BlockPos {
	return BlockPos{X: floor(l.X), Y: floor(l.Y), Z: floor(l.Z)}
}

func (l Location) String() string {
	return fmt.Sprintf("%s(%.1f, %.1f, %.1f)", l.World, l.X, l.Y, l.Z)
}

// BlockPos is an integer block coordinate
type BlockPos struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
	Z int `yaml:"z" json:"z"`
}

func floor(f float64) int {
	i := int(f)
	if f < 0 && float64(i) != f {
		i--
	}
	return i
}

// GameMode is the platform game mode of a player
type GameMode string

const (
	Survival  GameMode = "survival"
	Adventure GameMode = "adventure"
	Creative  GameMode = "creative"
	Spectator GameMode = "spectator"
)

// Item is an item stack
type Item struct {
	Material string `yaml:"material" json:"material"`
	Count    int    `yaml:"count,omitempty" json:"count,omitempty"`
	Name     string `yaml:"name,omitempty" json:"name,omitempty"`
}

// IsAir reports whether the stack is empty
func (i Item) IsAir() bool {
	return i.Material == "" || strings.Contains(strings.ToUpper(i.Material), "AIR")
}

// PotionEffect is a timed status effect
type PotionEffect struct {
	Type      string `yaml:"type" json:"type"`
	Duration  int    `yaml:"duration" json:"duration"` // ticks
	Amplifier int    `yaml:"amplifier,omitempty" json:"amplifier,omitempty"`
}

// Title is an on-screen title with timings in ticks
type Title struct {
	Title    string `yaml:"title" json:"title"`
	Subtitle string `yaml:"subtitle,omitempty" json:"subtitle,omitempty"`
	FadeIn   int    `yaml:"fade_in,omitempty" json:"fade_in,omitempty"`
	Stay     int    `yaml:"stay,omitempty" json:"stay,omitempty"`
	FadeOut  int    `yaml:"fade_out,omitempty" json:"fade_out,omitempty"`
}

// Player is a live player handle on the host platform
type Player interface {
	ID() uuid.UUID
	Name() string
	Online() bool
	HasPermission(node string) bool

	Location() Location
	Teleport(Location)
	Push(dx, dy, dz float64)
	ResetFallDistance()

	GameMode() GameMode
	SetGameMode(GameMode)
	AllowFlight() bool
	SetAllowFlight(bool)
	Level() int
	SetLevel(int)

	Inventory() *Inventory
	PotionEffects() []PotionEffect
	AddPotionEffect(PotionEffect)
	ClearPotionEffects()

	SendMessage(msg string)
	DisplayTitle(t Title)
	PlaySound(sound string)
}
