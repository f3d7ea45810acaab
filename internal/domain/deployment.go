// Package domain holds the core types shared across the oracle: deployments
// and the validity verdicts produced for them.
package domain

import "time"

// DeploymentID is the 32-byte content hash identifying a subgraph
// deployment's manifest.
type DeploymentID [32]byte

// Deployment is a read-only record surfaced by the network subgraph.
type Deployment struct {
	ID        DeploymentID
	Deny      bool
	Signal    uint64
	CreatedAt time.Time
}

// CacheEntry is one row of the valid-deployment cache: a deployment whose
// last verdict was Yes, and when that check happened.
type CacheEntry struct {
	CID           string
	LastValidated time.Time
}
