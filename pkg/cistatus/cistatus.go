// Package cistatus asks the upstream CI whether failing targets were
// already failing before the change under review. Everything here is
// best effort: network problems degrade to "unknown" and never fail
// the run.
package cistatus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pkgreview/pkgreview/pkg/logger"
)

// fanOut bounds concurrent status requests.
const fanOut = 10

// HydraClient queries a Hydra instance's per-job build status.
type HydraClient struct {
	BaseURL string

	logger     logger.Logger
	httpClient *http.Client
}

// NewHydraClient creates a status client against the public Hydra.
func NewHydraClient(log logger.Logger) *HydraClient {
	return &HydraClient{
		BaseURL:    "https://hydra.nixos.org",
		logger:     log,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type hydraBuild struct {
	Finished    int `json:"finished"`
	BuildStatus int `json:"buildstatus"`
}

// KnownFailures returns, for each queried name, whether upstream CI
// already recorded it failing on the given channel. Names without an
// answer are absent from the result.
func (c *HydraClient) KnownFailures(ctx context.Context, names []string, system string, channel string) map[string]bool {
	jobset := guessJobset(channel)

	var mu sync.Mutex
	known := make(map[string]bool, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOut)
	for _, name := range names {
		g.Go(func() error {
			failing, err := c.fetchStatus(ctx, jobset, name, system)
			if err != nil {
				if c.logger != nil {
					c.logger.Debug("Upstream CI status unavailable",
						logger.WithField("target", name),
						logger.WithField("error", err))
				}
				return nil
			}
			mu.Lock()
			known[name] = failing
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return known
}

func (c *HydraClient) fetchStatus(ctx context.Context, jobset, name, system string) (bool, error) {
	u := fmt.Sprintf("%s/job/%s/%s/latest", c.BaseURL,
		jobset, url.PathEscape(name+"."+system))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var build hydraBuild
	if err := json.NewDecoder(resp.Body).Decode(&build); err != nil {
		return false, err
	}

	// buildstatus 0 means succeeded; anything else on a finished
	// build is a pre-existing failure.
	return build.Finished == 1 && build.BuildStatus != 0, nil
}

// guessJobset maps a base branch to the Hydra jobset building it.
func guessJobset(channel string) string {
	switch channel {
	case "", "master", "main", "staging", "staging-next":
		return "nixpkgs/trunk"
	default:
		// Release branches like release-24.05 build under their own
		// jobset.
		return "nixos/" + channel
	}
}
