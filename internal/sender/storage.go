package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/soreon/mailout/internal/email"
)

var bucketSenders = []byte("senders")

// Storage provides sender storage operations
type Storage struct {
	db *bolt.DB
}

// NewStorage creates a new sender storage
func NewStorage(db *bolt.DB) (*Storage, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSenders)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sender bucket: %w", err)
	}
	return &Storage{db: db}, nil
}

func validate(s *Sender) error {
	if s.Name == "" {
		return &ValidationError{Field: "name", Message: "sender name is required"}
	}
	if s.Email == "" {
		return &ValidationError{Field: "email", Message: "sender email is required"}
	}
	if !email.ValidAddress(s.Email) {
		return &ValidationError{Field: "email", Message: fmt.Sprintf("invalid email address: %q", s.Email)}
	}
	return nil
}

// Create creates a new sender. Marking it default clears the previous
// default in the same transaction.
func (s *Storage) Create(ctx context.Context, sndr *Sender) error {
	if err := validate(sndr); err != nil {
		return err
	}

	sndr.ID = uuid.New().String()
	sndr.CreatedAt = time.Now()
	sndr.UpdatedAt = sndr.CreatedAt

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSenders)

		if sndr.IsDefault {
			if err := clearDefault(bucket, sndr.ID); err != nil {
				return err
			}
		}

		data, err := json.Marshal(sndr)
		if err != nil {
			return fmt.Errorf("failed to marshal sender: %w", err)
		}
		return bucket.Put([]byte(sndr.ID), data)
	})
}

// Get retrieves a sender by ID. Returns nil when not found.
func (s *Storage) Get(ctx context.Context, id string) (*Sender, error) {
	var sndr *Sender

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSenders).Get([]byte(id))
		if data == nil {
			return nil
		}
		sndr = &Sender{}
		return json.Unmarshal(data, sndr)
	})

	return sndr, err
}

// List returns all senders
func (s *Storage) List(ctx context.Context) ([]*Sender, error) {
	var senders []*Sender

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSenders).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var sndr Sender
			if err := json.Unmarshal(v, &sndr); err != nil {
				continue
			}
			senders = append(senders, &sndr)
		}
		return nil
	})

	return senders, err
}

// GetDefault returns the default sender, or nil when none is marked.
func (s *Storage) GetDefault(ctx context.Context) (*Sender, error) {
	var sndr *Sender

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSenders).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var candidate Sender
			if err := json.Unmarshal(v, &candidate); err != nil {
				continue
			}
			if candidate.IsDefault {
				sndr = &candidate
				return nil
			}
		}
		return nil
	})

	return sndr, err
}

// Update updates an existing sender. Setting IsDefault clears any other
// default atomically.
func (s *Storage) Update(ctx context.Context, sndr *Sender) error {
	if err := validate(sndr); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSenders)

		existingData := bucket.Get([]byte(sndr.ID))
		if existingData == nil {
			return fmt.Errorf("sender not found")
		}

		var existing Sender
		if err := json.Unmarshal(existingData, &existing); err != nil {
			return err
		}

		if sndr.IsDefault {
			if err := clearDefault(bucket, sndr.ID); err != nil {
				return err
			}
		}

		sndr.CreatedAt = existing.CreatedAt
		sndr.UpdatedAt = time.Now()

		data, err := json.Marshal(sndr)
		if err != nil {
			return fmt.Errorf("failed to marshal sender: %w", err)
		}
		return bucket.Put([]byte(sndr.ID), data)
	})
}

// Delete removes a sender by ID
func (s *Storage) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSenders).Delete([]byte(id))
	})
}

// clearDefault unsets IsDefault on every sender except the one being
// written. Must run inside the same write transaction.
func clearDefault(bucket *bolt.Bucket, exceptID string) error {
	// Collect first; mutating the bucket invalidates the cursor.
	var demoted []*Sender
	c := bucket.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var existing Sender
		if err := json.Unmarshal(v, &existing); err != nil {
			continue
		}
		if existing.IsDefault && existing.ID != exceptID {
			demoted = append(demoted, &existing)
		}
	}

	for _, sndr := range demoted {
		sndr.IsDefault = false
		sndr.UpdatedAt = time.Now()
		data, err := json.Marshal(sndr)
		if err != nil {
			return err
		}
		if err := bucket.Put([]byte(sndr.ID), data); err != nil {
			return err
		}
	}
	return nil
}
