package shipping

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/spf13/viper"
)

// Built-in rates in piastres, used when no rate file is configured.
const DefaultFallbackRate int64 = 8500

var builtinRates = map[string]int64{
	"cairo":      5000,
	"giza":       5000,
	"alexandria": 6500,
}

// RateTable prices delivery by governorate. Lookups are case and
// whitespace insensitive.
type RateTable struct {
	rates    map[string]int64
	fallback int64
}

// NewRateTable creates a table from governorate rates and a fallback.
func NewRateTable(rates map[string]int64, fallback int64) (*RateTable, error) {
	if fallback < 0 {
		return nil, fmt.Errorf("%w: negative default rate %d", ErrInvalidRateTable, fallback)
	}

	normalized := make(map[string]int64, len(rates))
	for name, cost := range rates {
		if cost < 0 {
			return nil, fmt.Errorf("%w: negative rate %d for %q", ErrInvalidRateTable, cost, name)
		}
		key := normalizeGovernorate(name)
		if key == "" {
			return nil, fmt.Errorf("%w: empty governorate name", ErrInvalidRateTable)
		}
		normalized[key] = cost
	}

	return &RateTable{rates: normalized, fallback: fallback}, nil
}

// DefaultRateTable returns the built-in table.
func DefaultRateTable() *RateTable {
	return &RateTable{rates: maps.Clone(builtinRates), fallback: DefaultFallbackRate}
}

// LoadRateTable reads a rate file with viper. The file holds a `default`
// rate and a `rates` map of governorate to cost:
//
//	default: 8500
//	rates:
//	  cairo: 5000
//	  giza: 5000
//
// An empty path returns the built-in table.
func LoadRateTable(path string) (*RateTable, error) {
	if path == "" {
		return DefaultRateTable(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("default", DefaultFallbackRate)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read shipping rates %s: %w", path, err)
	}

	var rates map[string]int64
	if err := v.UnmarshalKey("rates", &rates); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRateTable, err)
	}

	return NewRateTable(rates, v.GetInt64("default"))
}

// WithFallback returns a copy of t that charges fallback for unlisted
// governorates.
func (t *RateTable) WithFallback(fallback int64) (*RateTable, error) {
	return NewRateTable(t.rates, fallback)
}

// Cost returns the rate for a governorate and whether the fallback applied.
func (t *RateTable) Cost(governorate string) (int64, bool) {
	if cost, ok := t.rates[normalizeGovernorate(governorate)]; ok {
		return cost, false
	}
	return t.fallback, true
}

// GetRate implements Provider.
func (t *RateTable) GetRate(ctx context.Context, params RateParams) (*Rate, error) {
	if strings.TrimSpace(params.Governorate) == "" {
		return nil, ErrGovernorateRequired
	}

	cost, isDefault := t.Cost(params.Governorate)
	return &Rate{
		Governorate: params.Governorate,
		CostCents:   cost,
		IsDefault:   isDefault,
	}, nil
}

// Governorates returns the listed governorate keys.
func (t *RateTable) Governorates() []string {
	names := make([]string, 0, len(t.rates))
	for name := range t.rates {
		names = append(names, name)
	}
	return names
}

func normalizeGovernorate(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
