package backend

import (
	"context"

	"github.com/grokify/bytelens/pkg/scan"
)

// DiscardRecordStore accepts and drops every record. Open returns it for
// storage type "none".
type DiscardRecordStore struct{}

func (DiscardRecordStore) Store(context.Context, *scan.Record) error { return nil }

func (DiscardRecordStore) StoreBatch(context.Context, []*scan.Record) error { return nil }

func (DiscardRecordStore) Close() error { return nil }

var _ RecordStore = DiscardRecordStore{}
