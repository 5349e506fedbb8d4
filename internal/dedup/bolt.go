package dedup

import (
	"log"
	"time"

	bolt "github.com/boltdb/bolt"
)

const (
	createBucket = "created"
	cancelBucket = "canceled"
)

// Bolt persists the forwarded sets in an embedded bolt file so a restart
// does not re-forward bookings the previous process already handled. Same
// clearing policy as the memory store.
type Bolt struct {
	db        *bolt.DB
	threshold int
}

func NewBolt(path string, threshold int) (*Bolt, error) {
	if threshold <= 0 {
		threshold = 1000
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(createBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(cancelBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Bolt{db: db, threshold: threshold}, nil
}

func (b *Bolt) mark(bucket, bookID string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket([]byte(bucket))
		if bk.Stats().KeyN >= b.threshold {
			log.Printf("[dedup] clearing %s set (%d entries)", bucket, bk.Stats().KeyN)
			if err := tx.DeleteBucket([]byte(bucket)); err != nil {
				return err
			}
			var err error
			bk, err = tx.CreateBucket([]byte(bucket))
			if err != nil {
				return err
			}
		}
		return bk.Put([]byte(bookID), []byte{1})
	})
}

func (b *Bolt) has(bucket, bookID string) bool {
	var ok bool
	_ = b.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket([]byte(bucket)).Get([]byte(bookID)) != nil
		return nil
	})
	return ok
}

func (b *Bolt) MarkCreated(bookID string) error  { return b.mark(createBucket, bookID) }
func (b *Bolt) MarkCanceled(bookID string) error { return b.mark(cancelBucket, bookID) }
func (b *Bolt) Created(bookID string) bool       { return b.has(createBucket, bookID) }
func (b *Bolt) Canceled(bookID string) bool      { return b.has(cancelBucket, bookID) }

func (b *Bolt) Forwarded(bookID string) bool {
	return b.has(createBucket, bookID) || b.has(cancelBucket, bookID)
}

func (b *Bolt) Close() error { return b.db.Close() }
