package format

import (
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ReserveColorID цвет занятий из резервного расписания
const ReserveColorID = "11"

// lightnessStep сдвиг светлоты Lab на один шаг lighten/darken
const lightnessStep = 0.08

type paletteColor struct {
	id    string
	color colorful.Color
}

// Цвета событий Google Calendar в порядке объявления
var eventPalette = mustPalette([][2]string{
	{"1", "#959dd5"},
	{"2", "#6ac594"},
	{"3", "#a559b8"},
	{"4", "#ed978e"},
	{"5", "#fbcb62"},
	{"6", "#fa7b50"},
	{"7", "#66aee9"},
	{"8", "#7e7e7e"},
	{"9", "#6e71c2"},
	{"10", "#509967"},
	{"11", "#e3573a"},
})

// Базовые цвета Material, которыми upstream иногда подписывает занятия
var namedColors = map[string]string{
	"red":         "#f44336",
	"pink":        "#e91e63",
	"purple":      "#9c27b0",
	"deep-purple": "#673ab7",
	"indigo":      "#3f51b5",
	"blue":        "#2196f3",
	"light-blue":  "#03a9f4",
	"cyan":        "#00bcd4",
	"teal":        "#009688",
	"green":       "#4caf50",
	"light-green": "#8bc34a",
	"lime":        "#cddc39",
	"yellow":      "#ffeb3b",
	"amber":       "#ffc107",
	"orange":      "#ff9800",
	"deep-orange": "#ff5722",
	"brown":       "#795548",
	"blue-grey":   "#607d8b",
	"grey":        "#9e9e9e",
	"black":       "#000000",
	"white":       "#ffffff",
}

func mustPalette(entries [][2]string) []paletteColor {
	palette := make([]paletteColor, 0, len(entries))
	for _, e := range entries {
		c, err := colorful.Hex(e[1])
		if err != nil {
			panic("format: bad palette color " + e[1])
		}
		palette = append(palette, paletteColor{id: e[0], color: c})
	}
	return palette
}

// NearestColor подбирает ближайший цвет палитры календаря по CIE94.
// Нераспознанная подсказка считается чёрным цветом.
func NearestColor(hint string) string {
	return nearestIn(eventPalette, parseColorHint(hint))
}

// nearestIn при равных расстояниях выигрывает первый цвет палитры
func nearestIn(palette []paletteColor, c colorful.Color) string {
	best := ""
	lowest := math.Inf(1)
	for _, p := range palette {
		d := c.DistanceCIE94(p.color)
		if d < lowest {
			lowest = d
			best = p.id
		}
	}
	return best
}

// parseColorHint разбирает "#rgb", "#rrggbb" или "name [lighten-N|darken-N]"
func parseColorHint(hint string) colorful.Color {
	black := colorful.Color{}

	parts := strings.Fields(strings.ToLower(strings.TrimSpace(hint)))
	if len(parts) == 0 {
		return black
	}

	base, ok := resolveBase(parts[0])
	if !ok {
		return black
	}

	for _, modifier := range parts[1:] {
		base = applyModifier(base, modifier)
	}
	return base
}

func resolveBase(token string) (colorful.Color, bool) {
	if hex, ok := namedColors[token]; ok {
		c, err := colorful.Hex(hex)
		return c, err == nil
	}

	hex := strings.TrimPrefix(token, "#")
	if len(hex) != 3 && len(hex) != 6 {
		return colorful.Color{}, false
	}
	if _, err := strconv.ParseUint(hex, 16, 32); err != nil {
		return colorful.Color{}, false
	}

	c, err := colorful.Hex("#" + hex)
	return c, err == nil
}

func applyModifier(c colorful.Color, modifier string) colorful.Color {
	name, level, found := strings.Cut(modifier, "-")
	if !found {
		return c
	}

	n, err := strconv.Atoi(level)
	if err != nil || n < 1 || n > 5 {
		return c
	}

	l, a, b := c.Lab()
	switch name {
	case "lighten":
		l += lightnessStep * float64(n)
	case "darken":
		l -= lightnessStep * float64(n)
	default:
		return c
	}
	return colorful.Lab(math.Max(0, math.Min(1, l)), a, b).Clamped()
}
