package recipient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var bucketGroups = []byte("recipient_groups")

// Storage provides recipient group storage operations
type Storage struct {
	db *bolt.DB
}

// NewStorage creates a new recipient group storage
func NewStorage(db *bolt.DB) (*Storage, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketGroups)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create recipient group bucket: %w", err)
	}
	return &Storage{db: db}, nil
}

// Create creates a new recipient group. Every recipient must carry a valid
// email address; Count is derived from the recipient list.
func (s *Storage) Create(ctx context.Context, group *Group) error {
	if group.Name == "" {
		return &ValidationError{Field: "name", Message: "group name is required"}
	}
	if len(group.Recipients) == 0 {
		return &ValidationError{Field: "recipients", Message: "group must contain at least one recipient"}
	}
	for i := range group.Recipients {
		if err := group.Recipients[i].Validate(); err != nil {
			return err
		}
	}

	if group.Source == "" {
		group.Source = SourceManual
	}
	group.ID = uuid.New().String()
	group.Count = len(group.Recipients)
	group.CreatedAt = time.Now()
	group.UpdatedAt = group.CreatedAt

	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(group)
		if err != nil {
			return fmt.Errorf("failed to marshal group: %w", err)
		}
		return tx.Bucket(bucketGroups).Put([]byte(group.ID), data)
	})
}

// Get retrieves a group by ID. Returns nil when not found.
func (s *Storage) Get(ctx context.Context, id string) (*Group, error) {
	var group *Group

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketGroups).Get([]byte(id))
		if data == nil {
			return nil
		}
		group = &Group{}
		return json.Unmarshal(data, group)
	})

	return group, err
}

// List returns groups with optional filtering
func (s *Storage) List(ctx context.Context, filter ListFilter) ([]*Group, error) {
	var groups []*Group

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketGroups).Cursor()

		skipped := 0
		count := 0

		for k, v := c.First(); k != nil; k, v = c.Next() {
			var group Group
			if err := json.Unmarshal(v, &group); err != nil {
				continue
			}

			if filter.Search != "" {
				search := strings.ToLower(filter.Search)
				if !strings.Contains(strings.ToLower(group.Name), search) &&
					!strings.Contains(strings.ToLower(group.Description), search) {
					continue
				}
			}

			if skipped < filter.Offset {
				skipped++
				continue
			}

			groups = append(groups, &group)
			count++

			if filter.Limit > 0 && count >= filter.Limit {
				break
			}
		}

		return nil
	})

	return groups, err
}

// Update updates an existing group and rederives Count.
func (s *Storage) Update(ctx context.Context, group *Group) error {
	for i := range group.Recipients {
		if err := group.Recipients[i].Validate(); err != nil {
			return err
		}
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketGroups)

		existingData := bucket.Get([]byte(group.ID))
		if existingData == nil {
			return fmt.Errorf("group not found")
		}

		var existing Group
		if err := json.Unmarshal(existingData, &existing); err != nil {
			return err
		}

		group.Count = len(group.Recipients)
		group.CreatedAt = existing.CreatedAt
		group.UpdatedAt = time.Now()

		data, err := json.Marshal(group)
		if err != nil {
			return fmt.Errorf("failed to marshal group: %w", err)
		}
		return bucket.Put([]byte(group.ID), data)
	})
}

// Delete removes a group by ID
func (s *Storage) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketGroups).Delete([]byte(id))
	})
}
