package game

import (
	"sort"

	"swapit/internal/domain"
)

// Every theme carries at least MaxTileCount symbols.
var themes = map[string][]string{
	"animals": {"🐶", "🐱", "🦊", "🐼", "🐸", "🐵", "🦁", "🐧"},
	"food":    {"🍎", "🍌", "🍇", "🍓", "🍕", "🍔", "🌮", "🍩"},
	"faces":   {"😀", "😎", "🤓", "😴", "🤠", "😱", "🥳", "🤖"},
	"sports":  {"⚽", "🏀", "🏈", "⚾", "🎾", "🏐", "🏉", "🎱"},
	"space":   {"🌍", "🌙", "⭐", "☀️", "🪐", "🚀", "🛸", "☄️"},
	"nature":  {"🌲", "🌵", "🌻", "🍄", "🌊", "🔥", "❄️", "🌈"},
}

// Themes returns the known theme names, sorted.
func Themes() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tiles maps tile index to symbol for the first tileCount symbols of theme.
func Tiles(theme string, tileCount int) (map[int]string, error) {
	symbols, ok := themes[theme]
	if !ok {
		return nil, domain.Validation("unknown emoji_theme " + theme)
	}
	if tileCount < domain.MinTileCount || tileCount > len(symbols) {
		return nil, domain.Validation("tile_count out of range for theme")
	}
	out := make(map[int]string, tileCount)
	for i := 0; i < tileCount; i++ {
		out[i] = symbols[i]
	}
	return out, nil
}
