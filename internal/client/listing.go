package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/DevJihwan/kimcady-refactored/internal/events"
)

// ErrNoStore means no store id is configured, so the listing cannot be
// fetched. Callers proceed with speculative values only.
var ErrNoStore = errors.New("no store id configured")

// ListingClient fetches the full booking listing from the external system.
type ListingClient struct {
	baseURL string
	storeID string
	hc      *http.Client
}

func NewListingClient(baseURL, storeID string) *ListingClient {
	return &ListingClient{
		baseURL: baseURL,
		storeID: storeID,
		hc:      &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *ListingClient) Fetch(ctx context.Context) ([]events.BookingRecord, error) {
	if c.storeID == "" {
		return nil, ErrNoStore
	}

	u := c.baseURL + "/bookings?store_id=" + url.QueryEscape(c.storeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("listing fetch failed: %s (%d)", string(body), res.StatusCode)
	}

	var snap events.Snapshot
	if err := json.NewDecoder(res.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("parse listing json: %w", err)
	}
	return snap.Results, nil
}
