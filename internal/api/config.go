package api

// DefaultLimit is the page size used when a request gives no limit and the
// configured maximum is higher
const DefaultLimit = 20

// Config holds the engine settings read from configuration
type Config struct {
	// LimitMax is the highest limit a listing accepts
	LimitMax int
	// SearchEnabled allows the search parameter
	SearchEnabled bool
	// BaseURL overrides the site root when building absolute URLs
	BaseURL string
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		LimitMax:      20,
		SearchEnabled: true,
	}
}

func (c Config) defaultLimit() int {
	return min(DefaultLimit, c.LimitMax)
}
