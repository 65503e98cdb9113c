package cspreport

import "context"

// DiscardStore drops reports. Used in production when no collector is configured.
type DiscardStore struct{}

func (DiscardStore) Save(context.Context, StoredReport) error { return nil }

func (DiscardStore) List(context.Context, int) ([]StoredReport, error) {
	return []StoredReport{}, nil
}
