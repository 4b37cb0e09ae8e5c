package remote

import (
	"context"

	"github.com/pithecene-io/canisnap/metrics"
	"github.com/pithecene-io/canisnap/types"
)

// InstrumentedService wraps a Service and records call metrics.
// Every call increments remote call success or failure; data calls also
// count chunks and bytes moved.
type InstrumentedService struct {
	inner     Service
	collector *metrics.Collector
}

// NewInstrumentedService wraps a service with metrics instrumentation.
func NewInstrumentedService(inner Service, collector *metrics.Collector) *InstrumentedService {
	return &InstrumentedService{inner: inner, collector: collector}
}

func (s *InstrumentedService) record(err error) {
	if err != nil {
		s.collector.IncRemoteCallFailure(KindName(err))
		return
	}
	s.collector.IncRemoteCallSuccess()
}

// ReadSnapshotMetadata delegates to the inner service and records the outcome.
func (s *InstrumentedService) ReadSnapshotMetadata(ctx context.Context, canisterID string, id types.SnapshotID) (*types.RemoteSnapshotMetadata, error) {
	md, err := s.inner.ReadSnapshotMetadata(ctx, canisterID, id)
	s.record(err)
	return md, err
}

// ReadSnapshotData delegates to the inner service and records bytes read.
func (s *InstrumentedService) ReadSnapshotData(ctx context.Context, canisterID string, id types.SnapshotID, kind DataKind) ([]byte, error) {
	data, err := s.inner.ReadSnapshotData(ctx, canisterID, id, kind)
	s.record(err)
	if err == nil {
		s.collector.RecordChunkRead(len(data))
	}
	return data, err
}

// WriteSnapshotMetadata delegates to the inner service and records the
// returned snapshot id as a collector dimension.
func (s *InstrumentedService) WriteSnapshotMetadata(ctx context.Context, canisterID string, md *types.RemoteSnapshotMetadata, replace types.SnapshotID) (types.SnapshotID, error) {
	id, err := s.inner.WriteSnapshotMetadata(ctx, canisterID, md, replace)
	s.record(err)
	if err == nil {
		s.collector.SetSnapshotID(id.String())
	}
	return id, err
}

// WriteSnapshotData delegates to the inner service and records bytes written.
func (s *InstrumentedService) WriteSnapshotData(ctx context.Context, canisterID string, id types.SnapshotID, kind DataKind, data []byte) error {
	err := s.inner.WriteSnapshotData(ctx, canisterID, id, kind, data)
	s.record(err)
	if err == nil {
		s.collector.RecordChunkWritten(len(data))
	}
	return err
}

// Close delegates to the inner service.
func (s *InstrumentedService) Close() error {
	return s.inner.Close()
}

// Verify InstrumentedService implements Service.
var _ Service = (*InstrumentedService)(nil)
