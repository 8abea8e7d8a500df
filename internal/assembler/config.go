package assembler

// Config tunes the sliding-window assembler.
type Config struct {
	PreserveLastN       int
	MaxHistoryTokens    int
	EnableSystemCleanup bool
	MaxMessages         int
}

// DefaultConfig matches spec.md §4.4's defaults.
func DefaultConfig() Config {
	return Config{
		PreserveLastN:       2,
		MaxHistoryTokens:    2000,
		EnableSystemCleanup: true,
		MaxMessages:         20,
	}
}
