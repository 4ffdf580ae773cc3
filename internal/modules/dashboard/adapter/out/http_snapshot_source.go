package out

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"dispatchdesk/internal/modules/dashboard/domain"
	dashboardout "dispatchdesk/internal/modules/dashboard/port/out"
	apperrors "dispatchdesk/internal/platform/errors"
)

const countsPath = "dashboard/counts"

// maxSnapshotBytes caps the pull response body.
const maxSnapshotBytes = 8 << 20

type HTTPSnapshotSource struct {
	client   *http.Client
	endpoint string
}

func NewHTTPSnapshotSource(client *http.Client, baseURL string) (dashboardout.SnapshotSource, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parse api base url %q", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSnapshotSource{
		client:   client,
		endpoint: base.ResolveReference(&url.URL{Path: countsPath}).String(),
	}, nil
}

func (s *HTTPSnapshotSource) Fetch(ctx context.Context) (domain.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, http.NoBody)
	if err != nil {
		return domain.Snapshot{}, errors.Wrap(err, "build dashboard request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.Snapshot{}, errors.Wrap(err, "fetch dashboard")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.Snapshot{}, apperrors.ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.Snapshot{}, errors.Errorf("fetch dashboard: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return domain.Snapshot{}, errors.Wrap(err, "read dashboard response")
	}
	snap, err := domain.ParseSnapshot(body)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap.Source = domain.SourcePull
	return snap, nil
}
