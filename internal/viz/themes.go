package viz

import "github.com/charmbracelet/lipgloss"

// Theme colours a distance slice. Free cells are interpolated from Near
// (touching an obstacle) to Far (MaxDistance away).
type Theme struct {
	Name   string
	Near   lipgloss.Color
	Far    lipgloss.Color
	Solid  lipgloss.Color
	Void   lipgloss.Color
	Accent lipgloss.Color
	Muted  lipgloss.Color
}

var (
	ThemeThermal = Theme{
		Name:   "thermal",
		Near:   lipgloss.Color("#ff3b30"),
		Far:    lipgloss.Color("#1e3a8a"),
		Solid:  lipgloss.Color("#f5f5f5"),
		Void:   lipgloss.Color("#333333"),
		Accent: lipgloss.Color("#00ffff"),
		Muted:  lipgloss.Color("#666688"),
	}

	ThemeRetroGreen = Theme{
		Name:   "retro",
		Near:   lipgloss.Color("#88ff88"),
		Far:    lipgloss.Color("#003300"),
		Solid:  lipgloss.Color("#00ff00"),
		Void:   lipgloss.Color("#001100"),
		Accent: lipgloss.Color("#88ff88"),
		Muted:  lipgloss.Color("#005500"),
	}

	ThemeOcean = Theme{
		Name:   "ocean",
		Near:   lipgloss.Color("#ffd700"),
		Far:    lipgloss.Color("#001a33"),
		Solid:  lipgloss.Color("#e0f0ff"),
		Void:   lipgloss.Color("#223344"),
		Accent: lipgloss.Color("#00a8cc"),
		Muted:  lipgloss.Color("#4488aa"),
	}

	Themes = []Theme{
		ThemeThermal,
		ThemeRetroGreen,
		ThemeOcean,
	}
)

// GetTheme returns a theme by name, falling back to thermal.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeThermal
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}

func nextTheme(t Theme) Theme {
	for i, th := range Themes {
		if th.Name == t.Name {
			return Themes[(i+1)%len(Themes)]
		}
	}
	return Themes[0]
}
