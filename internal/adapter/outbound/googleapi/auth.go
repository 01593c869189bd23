package googleapi

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultTokenSource resolves Application Default Credentials for the cloud-platform scope.
func DefaultTokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	ts, err := google.DefaultTokenSource(ctx, CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("resolve application default credentials: %w", err)
	}
	return oauth2.ReuseTokenSource(nil, ts), nil
}
