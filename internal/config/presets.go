package config

import "sort"

var Presets = map[string]*WorldConfig{
	"empty": {
		Bounds: ShapeConfig{Kind: "box", Center: [3]float64{0, 0, 1}, Size: [3]float64{8, 8, 4}},
	},
	"pillars": {
		Bounds: ShapeConfig{Kind: "box", Center: [3]float64{0, 0, 1}, Size: [3]float64{8, 8, 4}},
		Shapes: []ShapeConfig{
			{Kind: "box", Center: [3]float64{0, 0, 1}, Size: [3]float64{0.5, 0.5, 2}},
			{Kind: "box", Center: [3]float64{1.5, -0.5, 1}, Size: [3]float64{0.5, 0.5, 2}},
			{Kind: "sphere", Center: [3]float64{-0.5, 1.5, 0.75}, Radius: 0.5},
		},
	},
	"corridor": {
		Bounds: ShapeConfig{Kind: "box", Center: [3]float64{0, 0, 1}, Size: [3]float64{10, 3, 2}},
		Shapes: []ShapeConfig{
			{Kind: "box", Center: [3]float64{0, 1.25, 1}, Size: [3]float64{10, 0.5, 2}},
			{Kind: "box", Center: [3]float64{0, -1.25, 1}, Size: [3]float64{10, 0.5, 2}},
			{Kind: "box", Center: [3]float64{2, 0.5, 0.5}, Size: [3]float64{0.5, 0.5, 1}},
		},
	},
	"boulders": {
		Bounds: ShapeConfig{Kind: "box", Center: [3]float64{0, 0, 1.5}, Size: [3]float64{6, 6, 3}},
		Shapes: []ShapeConfig{
			{Kind: "sphere", Center: [3]float64{1, 1, 0.5}, Radius: 0.8},
			{Kind: "sphere", Center: [3]float64{-1.2, 0.3, 1.2}, Radius: 0.6},
			{Kind: "sphere", Center: [3]float64{0.4, -1.4, 2}, Radius: 0.4},
		},
	},
}

func GetPreset(name string) *WorldConfig {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return p
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
