// Package subgraph provides the oracle's two upstream GraphQL data sources:
// the network subgraph (deployments and their current deny/signal state)
// and the epoch block oracle subgraph (the set of supported networks).
package subgraph

import (
	"context"
	"fmt"
	"time"

	"github.com/machinebox/graphql"

	"github.com/graphops/availability-oracle/internal/domain"
)

const pageSize = 1000

// DeploymentOrError is one item of a NetworkSubgraph deployment stream. Any
// non-nil Err terminates the reconciliation cycle per spec §4.4.
type DeploymentOrError struct {
	Deployment domain.Deployment
	Err        error
}

// NetworkSubgraph streams curated deployments over a minimum signal
// threshold, excluding those still inside their grace period.
type NetworkSubgraph interface {
	DeploymentsOverThreshold(ctx context.Context, minSignal uint64, gracePeriod time.Duration) <-chan DeploymentOrError
}

// EpochBlockOracleSubgraph reports the network ids this oracle deployment
// instance treats as supported.
type EpochBlockOracleSubgraph interface {
	SupportedNetworks(ctx context.Context) ([]string, error)
}

// Client is a minimal GraphQL client backing both subgraph interfaces.
type Client struct {
	gql *graphql.Client
	url string
}

// New builds a Client against the given GraphQL endpoint.
func New(url string) *Client {
	return &Client{gql: graphql.NewClient(url), url: url}
}

type deploymentRow struct {
	ID        string `json:"id"`
	Deny      bool   `json:"deny"`
	Signal    string `json:"signal"`
	CreatedAt string `json:"createdAt"`
}

type deploymentsPage struct {
	Deployments []deploymentRow `json:"subgraphDeployments"`
}

// DeploymentsOverThreshold pages through subgraphDeployments with
// signal >= minSignal, excluding anything created within gracePeriod of now,
// pushing each row (or the terminating error) onto the returned channel.
func (c *Client) DeploymentsOverThreshold(ctx context.Context, minSignal uint64, gracePeriod time.Duration) <-chan DeploymentOrError {
	out := make(chan DeploymentOrError)

	go func() {
		defer close(out)

		skip := 0
		for {
			req := graphql.NewRequest(`
				query Deployments($minSignal: BigInt!, $first: Int!, $skip: Int!) {
					subgraphDeployments(
						where: { signal_gte: $minSignal }
						first: $first
						skip: $skip
						orderBy: id
					) {
						id
						deny
						signal
						createdAt
					}
				}
			`)
			req.Var("minSignal", minSignal)
			req.Var("first", pageSize)
			req.Var("skip", skip)

			var page deploymentsPage
			if err := c.gql.Run(ctx, req, &page); err != nil {
				out <- DeploymentOrError{Err: fmt.Errorf("fetch deployments page: %w", err)}
				return
			}

			now := time.Now()
			for _, row := range page.Deployments {
				d, err := rowToDeployment(row)
				if err != nil {
					out <- DeploymentOrError{Err: fmt.Errorf("decode deployment %s: %w", row.ID, err)}
					return
				}
				if now.Sub(d.CreatedAt) < gracePeriod {
					continue
				}
				select {
				case out <- DeploymentOrError{Deployment: d}:
				case <-ctx.Done():
					out <- DeploymentOrError{Err: ctx.Err()}
					return
				}
			}

			if len(page.Deployments) < pageSize {
				return
			}
			skip += pageSize
		}
	}()

	return out
}

type networkRow struct {
	ID string `json:"id"`
}

type networksPage struct {
	Networks []networkRow `json:"networks"`
}

// SupportedNetworks pages through the full set of known network ids and
// returns them as a materialized slice, per spec §4.6 step 1's requirement
// that the set is fully drained before validation begins.
func (c *Client) SupportedNetworks(ctx context.Context) ([]string, error) {
	var networks []string
	skip := 0
	for {
		req := graphql.NewRequest(`
			query Networks($first: Int!, $skip: Int!) {
				networks(first: $first, skip: $skip, orderBy: id) {
					id
				}
			}
		`)
		req.Var("first", pageSize)
		req.Var("skip", skip)

		var page networksPage
		if err := c.gql.Run(ctx, req, &page); err != nil {
			return nil, fmt.Errorf("fetch networks page: %w", err)
		}
		for _, row := range page.Networks {
			networks = append(networks, row.ID)
		}
		if len(page.Networks) < pageSize {
			return networks, nil
		}
		skip += pageSize
	}
}
