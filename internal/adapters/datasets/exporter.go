package datasets

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	blobcore "pramcore/internal/infra/blob/core"
	"pramcore/internal/sim"
)

// ProbeSeries is the surface the exporter needs from a probe: its recorded
// samples and the column labels they carry.
type ProbeSeries interface {
	Name() string
	Columns() []string
	Series() []sim.MassSample
}

// AuditEntry captures audit trail metadata for exports.
type AuditEntry struct {
	Action     string            `json:"action"`
	Probe      string            `json:"probe"`
	Key        string            `json:"key"`
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// AuditLogger records export audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// ProbeExporter renders probe series to CSV and stores them as blob
// artifacts with audit metadata.
type ProbeExporter struct {
	store blobcore.Store
	audit AuditLogger
}

// NewProbeExporter constructs an exporter over the given store. The audit
// logger may be nil.
func NewProbeExporter(store blobcore.Store, audit AuditLogger) *ProbeExporter {
	return &ProbeExporter{store: store, audit: audit}
}

// ExportCSV renders the probe's series to CSV and stores it under key.
func (e *ProbeExporter) ExportCSV(ctx context.Context, probe ProbeSeries, key string) (blobcore.Info, error) {
	series := probe.Series()
	columns := probe.Columns()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := append([]string{"iter", "t"}, columns...)
	if err := w.Write(header); err != nil {
		return blobcore.Info{}, err
	}
	for _, sample := range series {
		record := make([]string, 0, len(header))
		record = append(record, strconv.Itoa(sample.Iter), strconv.Itoa(sample.T))
		for _, c := range columns {
			record = append(record, strconv.FormatFloat(sample.Values[c], 'g', -1, 64))
		}
		if err := w.Write(record); err != nil {
			return blobcore.Info{}, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return blobcore.Info{}, err
	}

	meta := map[string]string{
		"probe": probe.Name(),
		"rows":  strconv.Itoa(len(series)),
	}
	info, err := e.store.Put(ctx, key, &buf, blobcore.PutOptions{ContentType: "text/csv", Metadata: meta})
	e.recordAudit(ctx, probe.Name(), key, meta, err)
	if err != nil {
		return blobcore.Info{}, fmt.Errorf("export probe %q: %w", probe.Name(), err)
	}
	return info, nil
}

func (e *ProbeExporter) recordAudit(ctx context.Context, probe, key string, meta map[string]string, err error) {
	if e.audit == nil {
		return
	}
	entry := AuditEntry{
		Action:     "export_csv",
		Probe:      probe,
		Key:        key,
		Status:     "succeeded",
		Metadata:   meta,
		OccurredAt: time.Now().UTC(),
	}
	if err != nil {
		entry.Status = "failed"
		entry.Error = err.Error()
	}
	e.audit.Record(ctx, entry)
}
