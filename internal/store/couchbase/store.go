// Package couchbase implements the document store against a single shared
// Couchbase bucket. Documents are keyed "<type>::<id>" with a type
// discriminator field, listings run as N1QL queries and search goes through
// the cluster full-text indexes.
package couchbase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
	cbsearch "github.com/couchbase/gocb/v2/search"

	"stockroom-server/internal/store"
)

type Config struct {
	ConnStr   string
	Username  string
	Password  string
	Bucket    string
	ItemIndex string
	UserIndex string
	PersistTo uint
	OpTimeout time.Duration
}

type Store struct {
	cluster    *gocb.Cluster
	bucket     *gocb.Bucket
	col        *gocb.Collection
	bucketName string
	itemIndex  string
	userIndex  string
	persistTo  uint
	timeout    time.Duration
}

func Connect(ctx context.Context, cfg Config) (*Store, error) {
	cluster, err := gocb.Connect(cfg.ConnStr, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect cluster: %w", err)
	}

	bucket := cluster.Bucket(cfg.Bucket)
	if err := bucket.WaitUntilReady(10*time.Second, nil); err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", cfg.Bucket, err)
	}

	timeout := cfg.OpTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Store{
		cluster:    cluster,
		bucket:     bucket,
		col:        bucket.DefaultCollection(),
		bucketName: cfg.Bucket,
		itemIndex:  cfg.ItemIndex,
		userIndex:  cfg.UserIndex,
		persistTo:  cfg.PersistTo,
		timeout:    timeout,
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.bucket.Ping(&gocb.PingOptions{Context: ctx})
	return err
}

func (s *Store) Close() error {
	return s.cluster.Close(nil)
}

func docKey(docType, id string) string {
	return docType + "::" + id
}

// listByType pages over all documents of one type. Rows are ordered by key
// so that skip/limit pagination is stable across requests.
func (s *Store) listByType(ctx context.Context, docType string, skip, limit int, scan func(row func(valuePtr interface{}) error) error) error {
	statement := fmt.Sprintf(
		"SELECT b.* FROM `%s` AS b WHERE b.type = $type ORDER BY META(b).id LIMIT $limit OFFSET $skip",
		s.bucketName,
	)
	result, err := s.cluster.Query(statement, &gocb.QueryOptions{
		Context: ctx,
		NamedParameters: map[string]interface{}{
			"type":  docType,
			"limit": limit,
			"skip":  skip,
		},
		ScanConsistency: gocb.QueryScanConsistencyRequestPlus,
		Timeout:         s.timeout,
	})
	if err != nil {
		return fmt.Errorf("list %s: %w", docType, err)
	}

	for result.Next() {
		if err := scan(result.Row); err != nil {
			return fmt.Errorf("scan %s row: %w", docType, err)
		}
	}
	if err := result.Err(); err != nil {
		return fmt.Errorf("iterate %s rows: %w", docType, err)
	}
	return nil
}

// searchKeys resolves a full-text query-string search to the matching
// document keys, which are then re-fetched in bulk by the caller.
func (s *Store) searchKeys(ctx context.Context, index, queryString string, skip, limit int) ([]string, error) {
	result, err := s.cluster.SearchQuery(index, cbsearch.NewQueryStringQuery(queryString), &gocb.SearchOptions{
		Context: ctx,
		Skip:    uint32(skip),
		Limit:   uint32(limit),
		Timeout: s.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("search index %s: %w", index, err)
	}

	var keys []string
	for result.Next() {
		keys = append(keys, result.Row().ID)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return keys, nil
}

// writeErr maps durability and ack failures so callers treat the write as
// failed rather than retrying it blindly.
func writeErr(op string, err error) error {
	if errors.Is(err, gocb.ErrDurabilityImpossible) ||
		errors.Is(err, gocb.ErrDurabilityAmbiguous) ||
		errors.Is(err, gocb.ErrTimeout) {
		return fmt.Errorf("%s: %w", op, store.ErrDurability)
	}
	return fmt.Errorf("%s: %w", op, err)
}
