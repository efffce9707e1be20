package openmeteo

import (
	"context"
	"sync"

	"github.com/kdpalma/floodwatch/internal/models"
)

// FetchAll fetches observations for every location concurrently and returns
// them in submission order: out[i] always corresponds to locs[i], no matter
// which fetch settles first. The positional join downstream depends on this.
//
// There is no partial-result mode: FetchAll returns once every location has
// settled, where a failed fetch settles as the zero fallback (see Fetch).
func (c *Client) FetchAll(ctx context.Context, locs []models.Location) []models.Observation {
	out := make([]models.Observation, len(locs))

	var wg sync.WaitGroup
	for i := range locs {
		wg.Add(1)
		go func(i int, loc models.Location) {
			defer wg.Done()
			out[i] = c.Fetch(ctx, loc.Latitude, loc.Longitude)
		}(i, locs[i])
	}
	wg.Wait()

	return out
}
