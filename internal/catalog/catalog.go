package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"study-assistant/internal/models"
)

var ErrNotFound = errors.New("ingestion not found")

var bucketIngestions = []byte("ingestions")

// Ingestion records one indexed source so it can be queried again later.
type Ingestion struct {
	SourceID   string    `json:"source_id"`
	Name       string    `json:"name"`
	Location   string    `json:"location"`
	Store      string    `json:"store"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

func (i Ingestion) Handle() models.IndexHandle {
	return models.IndexHandle{SourceID: i.SourceID, Location: i.Location}
}

type Catalog struct {
	db *bbolt.DB
}

func Open(path string) (*Catalog, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketIngestions)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Catalog{db: db}, nil
}

// Save stores the record under its source id, replacing any earlier one.
func (c *Catalog) Save(ing Ingestion) error {
	if ing.SourceID == "" {
		return errors.New("ingestion has no source id")
	}
	if ing.CreatedAt.IsZero() {
		ing.CreatedAt = time.Now().UTC()
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(ing)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketIngestions).Put([]byte(ing.SourceID), data)
	})
}

func (c *Catalog) Get(sourceID string) (*Ingestion, error) {
	var ing Ingestion
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketIngestions).Get([]byte(sourceID))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, sourceID)
		}
		return json.Unmarshal(data, &ing)
	})
	if err != nil {
		return nil, err
	}
	return &ing, nil
}

// List returns all records, newest first.
func (c *Catalog) List() ([]Ingestion, error) {
	var out []Ingestion
	err := c.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIngestions).ForEach(func(_, v []byte) error {
			var ing Ingestion
			if err := json.Unmarshal(v, &ing); err != nil {
				return err
			}
			out = append(out, ing)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (c *Catalog) Delete(sourceID string) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIngestions).Delete([]byte(sourceID))
	})
}

func (c *Catalog) Close() error {
	return c.db.Close()
}
