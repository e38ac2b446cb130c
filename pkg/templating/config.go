package templating

// FallbackPolicy decides what a conditional renders when no branch matches
// and there is no else clause.
type FallbackPolicy string

const (
	// FallbackLastElseif renders the body of the final elseif clause when the
	// conditional has at least one, and nothing otherwise.
	FallbackLastElseif FallbackPolicy = "last-elseif"

	// FallbackLastBlock renders the last declared block, including the body of
	// a lone if. This matches the legacy shortcode exactly.
	FallbackLastBlock FallbackPolicy = "last-block"

	// FallbackEmpty renders nothing.
	FallbackEmpty FallbackPolicy = "empty"
)

// Config holds all configuration options for the rendering engine.
type Config struct {
	// Fallback controls the no-match, no-else behavior of conditionals.
	Fallback FallbackPolicy `json:"conditional_fallback" validate:"omitempty,oneof=last-elseif last-block empty"`

	// Locale selects month and weekday names for the date pipe and the
	// case mapping rules for upper and lower (e.g. "en_US", "de_DE", "tr").
	Locale string `json:"locale"`

	// Timezone is the IANA zone dates are rendered in. Empty means UTC.
	Timezone string `json:"timezone"`

	// DefaultSeparator joins list items when a request does not set sep.
	DefaultSeparator string `json:"default_separator"`

	// MaxNestingDepth sets a hard upper limit on how deeply loops and
	// conditionals may nest. Directives past the limit are kept as literal text.
	MaxNestingDepth int `json:"max_nesting_depth" validate:"gte=1,lte=256"`
}

// DefaultConfig returns a Config with the legacy-compatible defaults.
func DefaultConfig() *Config {
	return &Config{
		Fallback:         FallbackLastElseif,
		Locale:           "en_US",
		Timezone:         "UTC",
		DefaultSeparator: ", ",
		MaxNestingDepth:  30,
	}
}
