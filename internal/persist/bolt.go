package persist

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"

	"github.com/roach88/tabstore/internal/ir"
)

var (
	bucketTables = []byte("tables")
	bucketValues = []byte("values")
	bucketMeta   = []byte("meta")
	keySavedAt   = []byte("saved_at")
)

// BoltBackend keeps content in a bbolt file: a sub-bucket per table holding
// one msgpack-encoded row per key, and a bucket of msgpack-encoded values.
type BoltBackend struct {
	db *bbolt.DB
}

// OpenBolt creates or opens a bbolt database at path.
func OpenBolt(path string) (*BoltBackend, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}
	return &BoltBackend{db: db}, nil
}

// Name implements Backend.
func (b *BoltBackend) Name() string { return string(KindBolt) }

// Read implements Backend.
func (b *BoltBackend) Read(ctx context.Context) (ir.Content, bool, error) {
	if err := ctx.Err(); err != nil {
		return ir.Content{}, false, newError(ErrCodeLoadFailed, b.Name(), err)
	}
	content := ir.Content{Tables: ir.Tables{}, Values: ir.Values{}}
	found := false
	err := b.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil || meta.Get(keySavedAt) == nil {
			return nil
		}
		found = true

		if tables := tx.Bucket(bucketTables); tables != nil {
			err := tables.ForEachBucket(func(tableID []byte) error {
				table := ir.Table{}
				err := tables.Bucket(tableID).ForEach(func(rowID, data []byte) error {
					row, err := decodeScalarMap(data)
					if err != nil {
						return fmt.Errorf("row %q/%q: %w", tableID, rowID, err)
					}
					table[string(rowID)] = ir.Row(row)
					return nil
				})
				content.Tables[string(tableID)] = table
				return err
			})
			if err != nil {
				return err
			}
		}

		if values := tx.Bucket(bucketValues); values != nil {
			return values.ForEach(func(valueID, data []byte) error {
				value, err := decodeScalar(data)
				if err != nil {
					return fmt.Errorf("value %q: %w", valueID, err)
				}
				content.Values[string(valueID)] = value
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return ir.Content{}, false, newError(ErrCodeDecodeFailed, b.Name(), err)
	}
	return content, found, nil
}

// Write implements Backend. Existing buckets are dropped and rebuilt in one
// bolt transaction.
func (b *BoltBackend) Write(ctx context.Context, content ir.Content) error {
	if err := ctx.Err(); err != nil {
		return newError(ErrCodeSaveFailed, b.Name(), err)
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketTables, bucketValues} {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
			}
		}

		tables, err := tx.CreateBucket(bucketTables)
		if err != nil {
			return err
		}
		for tableID, table := range content.Tables {
			tb, err := tables.CreateBucket([]byte(tableID))
			if err != nil {
				return fmt.Errorf("table %q: %w", tableID, err)
			}
			for rowID, row := range table {
				data, err := encodeMsgpack(nativeMap(row))
				if err != nil {
					return fmt.Errorf("row %q/%q: %w", tableID, rowID, err)
				}
				if err := tb.Put([]byte(rowID), data); err != nil {
					return err
				}
			}
		}

		values, err := tx.CreateBucket(bucketValues)
		if err != nil {
			return err
		}
		for valueID, value := range content.Values {
			data, err := encodeMsgpack(ir.Native(value))
			if err != nil {
				return fmt.Errorf("value %q: %w", valueID, err)
			}
			if err := values.Put([]byte(valueID), data); err != nil {
				return err
			}
		}

		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		return meta.Put(keySavedAt, []byte(time.Now().UTC().Format(time.RFC3339Nano)))
	})
	if err != nil {
		return newError(ErrCodeSaveFailed, b.Name(), err)
	}
	return nil
}

// Close implements Backend.
func (b *BoltBackend) Close() error {
	return b.db.Close()
}

func nativeMap(row ir.Row) map[string]any {
	out := make(map[string]any, len(row))
	for cellID, cell := range row {
		out[cellID] = ir.Native(cell)
	}
	return out
}

func encodeMsgpack(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	enc.SetSortMapKeys(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeMsgpack(data []byte) (any, error) {
	dec := msgpack.GetDecoder()
	dec.Reset(bytes.NewReader(data))
	v, err := dec.DecodeInterface()
	msgpack.PutDecoder(dec)
	return v, err
}

func decodeScalarMap(data []byte) (map[string]ir.Scalar, error) {
	v, err := decodeMsgpack(data)
	if err != nil {
		return nil, err
	}
	return decodeScalars(v)
}

func decodeScalar(data []byte) (ir.Scalar, error) {
	v, err := decodeMsgpack(data)
	if err != nil {
		return nil, err
	}
	scalar, ok := ir.ToScalar(v)
	if !ok {
		return nil, fmt.Errorf("%T is not a string, number or boolean", v)
	}
	return scalar, nil
}
