package audit

import (
	"fmt"

	"github.com/darmiel/doigate/internal/buildinfo"
)

// CreateUserAgent identifies doigate and the originating request towards registries.
func CreateUserAgent(correlationID, connector string) string {
	return fmt.Sprintf("doigate/%s (correlation_id=%s; connector=%s)",
		buildinfo.Version, correlationID, connector)
}
