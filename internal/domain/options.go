package domain

const (
	MinTileCount = 4
	MaxTileCount = 8

	// MaxPlayersLimit bounds what a host may request.
	MaxPlayersLimit = 50

	DefaultTileCount      = 6
	DefaultMaxPlayers     = 10
	DefaultPlacementCount = 3
	DefaultEmojiTheme     = "animals"
)

// Options are the per-session settings. Zero fields mean "use the default";
// Resolve turns them into concrete values once, at creation time.
type Options struct {
	TileCount      int    `json:"tile_count"`
	EmojiTheme     string `json:"emoji_theme"`
	MaxPlayers     int    `json:"max_players"`
	PlacementCount int    `json:"placement_count"`
}

// Resolve fills unset fields from defaults and validates the result.
// A placement count above max players is clamped down to it.
func (o Options) Resolve(defaults Options) (Options, error) {
	if o.TileCount == 0 {
		o.TileCount = defaults.TileCount
	}
	if o.EmojiTheme == "" {
		o.EmojiTheme = defaults.EmojiTheme
	}
	if o.MaxPlayers == 0 {
		o.MaxPlayers = defaults.MaxPlayers
	}
	if o.PlacementCount == 0 {
		o.PlacementCount = defaults.PlacementCount
	}

	if o.TileCount < MinTileCount || o.TileCount > MaxTileCount {
		return o, Validation("tile_count must be between 4 and 8")
	}
	if o.MaxPlayers < 1 || o.MaxPlayers > MaxPlayersLimit {
		return o, Validation("max_players must be between 1 and 50")
	}
	if o.PlacementCount < 1 {
		return o, Validation("placement_count must be positive")
	}
	if o.PlacementCount > o.MaxPlayers {
		o.PlacementCount = o.MaxPlayers
	}
	return o, nil
}
