// Package store implements the result key-value store (the "trips" table)
// on top of Azure Cosmos DB.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"

	"github.com/trasaroute/trasaroute/internal/errs"
	"github.com/trasaroute/trasaroute/internal/model"
)

// Config configures the Cosmos-backed trip store.
type Config struct {
	Endpoint     string
	DatabaseName string
	ContainerName string
	// Key is optional; empty uses managed identity.
	Key string
}

// Store is the trips key-value table. Primary key is id; a second write
// with the same id overwrites an earlier ready record and is harmless
// under at-least-once queue delivery.
type Store struct {
	container *azcosmos.ContainerClient
}

// New connects to the configured Cosmos database/container.
func New(ctx context.Context, cfg Config) (*Store, error) {
	var client *azcosmos.Client
	var err error
	if cfg.Key != "" {
		cred, credErr := azcosmos.NewKeyCredential(cfg.Key)
		if credErr != nil {
			return nil, fmt.Errorf("store: key credential: %w", credErr)
		}
		client, err = azcosmos.NewClientWithKey(cfg.Endpoint, cred, nil)
	} else {
		cred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, fmt.Errorf("store: default credential: %w", credErr)
		}
		client, err = azcosmos.NewClient(cfg.Endpoint, cred, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("store: client: %w", err)
	}

	database, err := client.NewDatabase(cfg.DatabaseName)
	if err != nil {
		return nil, fmt.Errorf("store: database: %w", err)
	}
	container, err := database.NewContainer(cfg.ContainerName)
	if err != nil {
		return nil, fmt.Errorf("store: container: %w", err)
	}
	return &Store{container: container}, nil
}

// ErrNotFound is returned by Get when no record exists for id.
var ErrNotFound = errors.New("store: record not found")

// Put upserts a trip record, keyed by its own id (used as the partition key
// too, since the trips container is keyed purely by id).
func (s *Store) Put(ctx context.Context, rec model.TripRecord) error {
	pk := azcosmos.NewPartitionKeyString(rec.ID)
	data, err := json.Marshal(rec)
	if err != nil {
		return errs.ServerErrorWrap(err, "server_error")
	}
	if _, err := s.container.UpsertItem(ctx, pk, data, nil); err != nil {
		return errs.ServerErrorWrap(err, "server_error")
	}
	return nil
}

// Get reads a trip record by id. Returns ErrNotFound (not a taxonomy
// error) when absent, so trip.poll can distinguish "still pending" from a
// real downstream failure.
func (s *Store) Get(ctx context.Context, id string) (model.TripRecord, error) {
	pk := azcosmos.NewPartitionKeyString(id)
	resp, err := s.container.ReadItem(ctx, pk, id, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return model.TripRecord{}, ErrNotFound
		}
		return model.TripRecord{}, errs.ServerErrorWrap(err, "server_error")
	}
	var rec model.TripRecord
	if err := json.Unmarshal(resp.Value, &rec); err != nil {
		return model.TripRecord{}, errs.ServerErrorWrap(err, "server_error")
	}
	return rec, nil
}
