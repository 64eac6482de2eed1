//go:build !gcp

package artifacts

import (
	"context"
	"fmt"
)

// newGCSStore refuses GCS in default builds so the cloud SDK stays out of the
// binary unless asked for.
func newGCSStore(_ context.Context, cfg GCSStoreConfig) (Store, error) {
	return nil, fmt.Errorf("%w: gcs (bucket %q); rebuild with -tags gcp", ErrBackendUnavailable, cfg.Bucket)
}
