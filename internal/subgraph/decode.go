package subgraph

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/graphops/availability-oracle/internal/domain"
)

// rowToDeployment decodes one GraphQL deployment row into the oracle's
// domain type. id is expected as a 0x-prefixed 32-byte hex string; signal
// and createdAt are expected as base-10 integer strings (the subgraph's
// BigInt encoding). Values with a fractional part are rejected.
func rowToDeployment(row deploymentRow) (domain.Deployment, error) {
	idBytes, err := hex.DecodeString(strings.TrimPrefix(row.ID, "0x"))
	if err != nil || len(idBytes) != 32 {
		return domain.Deployment{}, fmt.Errorf("id %q is not a 32-byte hex string", row.ID)
	}
	var id domain.DeploymentID
	copy(id[:], idBytes)

	signal, err := strconv.ParseUint(row.Signal, 10, 64)
	if err != nil {
		return domain.Deployment{}, fmt.Errorf("signal %q: %w", row.Signal, err)
	}

	createdAtSecs, err := strconv.ParseInt(row.CreatedAt, 10, 64)
	if err != nil {
		return domain.Deployment{}, fmt.Errorf("createdAt %q: %w", row.CreatedAt, err)
	}

	return domain.Deployment{
		ID:        id,
		Deny:      row.Deny,
		Signal:    signal,
		CreatedAt: time.Unix(createdAtSecs, 0).UTC(),
	}, nil
}
