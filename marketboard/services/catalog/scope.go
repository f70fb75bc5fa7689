package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/xivmarket/market-calculator/marketboard/database/models"
)

// ErrUnknownLocation is returned when the configured world or datacentre is
// not in the seeded location table.
var ErrUnknownLocation = errors.New("unknown market board location")

// LocationLister lists the seeded locations of one kind.
type LocationLister interface {
	Names(ctx context.Context, kind string) ([]string, error)
}

// CheckScope verifies that scope names a seeded world or datacentre. Names
// compare case-insensitively.
func CheckScope(ctx context.Context, locations LocationLister, scope models.Scope) error {
	names, err := locations.Names(ctx, scope.Type)
	if err != nil {
		return fmt.Errorf("failed to load %s list: %w", strings.ToLower(scope.Type), err)
	}
	if len(names) == 0 {
		return fmt.Errorf("no %s names are stored, run seed first", strings.ToLower(scope.Type))
	}

	for _, name := range names {
		if strings.EqualFold(name, scope.Location) {
			return nil
		}
	}

	if matches := fuzzy.Find(strings.ToLower(scope.Location), lowered(names)); len(matches) > 0 {
		return fmt.Errorf("%w: %s %q, did you mean %q?",
			ErrUnknownLocation, strings.ToLower(scope.Type), scope.Location, names[matches[0].Index])
	}
	return fmt.Errorf("%w: %s %q", ErrUnknownLocation, strings.ToLower(scope.Type), scope.Location)
}

func lowered(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.ToLower(n)
	}
	return out
}
