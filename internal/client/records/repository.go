package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gradekeeper/internal/client/blobstore"
	"github.com/dmitrijs2005/gradekeeper/internal/logging"
)

const (
	recordTag  = "record"
	recordType = "application/json"
)

// BlobStore is the subset of blobstore.Store the repository needs.
type BlobStore interface {
	Save(ctx context.Context, payload blobstore.Payload, opts blobstore.SaveOptions) (*blobstore.SaveResult, error)
	Get(ctx context.Context, id, passphrase string) (*blobstore.Item, error)
	Stored(ctx context.Context, id string) (*blobstore.Record, error)
	Restore(ctx context.Context, rec *blobstore.Record) (string, error)
	List(ctx context.Context, f blobstore.Filter) ([]blobstore.Meta, error)
	Remove(ctx context.Context, id string) error
}

// Options control how records are stored.
type Options struct {
	Encrypt    bool
	Passphrase string
	Compress   bool
}

type Repository struct {
	blobs  BlobStore
	opts   Options
	logger logging.Logger
}

func NewRepository(blobs BlobStore, opts Options, logger logging.Logger) *Repository {
	return &Repository{blobs: blobs, opts: opts, logger: logger.With("component", "records")}
}

// Save normalizes and validates r, then stores it. A stored record with the
// same name is overwritten in place and its version bumped.
func (r *Repository) Save(ctx context.Context, rec Record) (*Record, error) {
	n := NormalizeRecord(rec)
	if err := Validate(n); err != nil {
		return nil, err
	}

	name := Name(n)
	existing, err := r.blobs.List(ctx, blobstore.Filter{Tag: recordTag, Name: name})
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", name, err)
	}

	var prevVersion int64
	if len(existing) > 0 {
		n.ID = existing[0].ID
		if prev, err := r.Get(ctx, n.ID); err == nil && prev != nil {
			prevVersion = prev.Version
		}
	}
	if n.Version <= prevVersion {
		n.Version = prevVersion + 1
	}

	if err := r.put(ctx, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// Store writes rec under its own id and version, without name lookup or
// version bump. Used to materialize records that arrive from the remote.
func (r *Repository) Store(ctx context.Context, rec Record) (*Record, error) {
	n := NormalizeRecord(rec)
	if n.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidRecord)
	}
	if err := Validate(n); err != nil {
		return nil, err
	}
	if err := r.put(ctx, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *Repository) put(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		id, err := blobstore.NewID()
		if err != nil {
			return err
		}
		rec.ID = id
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	_, err = r.blobs.Save(ctx, blobstore.TextPayload(b), blobstore.SaveOptions{
		ID:         rec.ID,
		Kind:       blobstore.KindUpload,
		Type:       recordType,
		Encrypt:    r.opts.Encrypt,
		Passphrase: r.opts.Passphrase,
		Compress:   r.opts.Compress,
		Tags:       Tags(*rec),
		Name:       Name(*rec),
	})
	if err != nil {
		return fmt.Errorf("store record %s: %w", rec.ID, err)
	}
	r.logger.Debug(ctx, "record stored", "id", rec.ID, "version", rec.Version)
	return nil
}

// Get returns (nil, nil) when id is not stored.
func (r *Repository) Get(ctx context.Context, id string) (*Record, error) {
	item, err := r.blobs.Get(ctx, id, r.opts.Passphrase)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	return decode(item)
}

func decode(item *blobstore.Item) (*Record, error) {
	if item.Opaque {
		return nil, ErrEncrypted
	}
	var rec Record
	if err := json.Unmarshal(item.Data.Bytes(), &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, item.Meta.ID, err)
	}
	rec.ID = item.Meta.ID
	return &rec, nil
}

// List returns every readable record, oldest first. Unreadable entries are
// logged and skipped; CheckIntegrity reports them.
func (r *Repository) List(ctx context.Context) ([]Record, error) {
	metas, err := r.blobs.List(ctx, blobstore.Filter{Tag: recordTag})
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(metas))
	for _, m := range metas {
		rec, err := r.Get(ctx, m.ID)
		if err != nil {
			r.logger.Warn(ctx, "skipping unreadable record", "id", m.ID, "error", err)
			continue
		}
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// Update merges patch over the stored record, re-normalizes and re-validates
// it, and stores it under the same id with the next version.
func (r *Repository) Update(ctx context.Context, id string, patch map[string]any) (*Record, error) {
	cur, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	merged := ToMap(*cur)
	for k, v := range patch {
		merged[k] = v
	}
	n := Normalize(merged)
	n.ID = id
	n.Version = cur.Version + 1
	if err := Validate(n); err != nil {
		return nil, err
	}
	if name := Name(n); name != Name(*cur) {
		taken, err := r.blobs.List(ctx, blobstore.Filter{Tag: recordTag, Name: name})
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", name, err)
		}
		for _, m := range taken {
			if m.ID != id {
				return nil, fmt.Errorf("%w: %s is used by %s", ErrNameTaken, name, m.ID)
			}
		}
	}

	if err := r.put(ctx, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.blobs.Remove(ctx, id)
}

// ExportEntry carries a decoded record or, for entries that do not decode
// with the exporting passphrase, the item exactly as stored. Error is set
// when not even the stored bytes could be read.
type ExportEntry struct {
	ID     string            `json:"id"`
	Name   string            `json:"name,omitempty"`
	Record *Record           `json:"record,omitempty"`
	Raw    *blobstore.Record `json:"raw,omitempty"`
	Error  string            `json:"error,omitempty"`
}

func (r *Repository) Export(ctx context.Context) ([]ExportEntry, error) {
	metas, err := r.blobs.List(ctx, blobstore.Filter{Tag: recordTag})
	if err != nil {
		return nil, err
	}
	out := make([]ExportEntry, 0, len(metas))
	for _, m := range metas {
		e := ExportEntry{ID: m.ID, Name: m.Name}
		item, err := r.blobs.Get(ctx, m.ID, r.opts.Passphrase)
		if err == nil && item == nil {
			continue
		}
		if err == nil {
			if rec, derr := decode(item); derr == nil && Validate(*rec) == nil {
				e.Record = rec
				out = append(out, e)
				continue
			}
		}

		stored, serr := r.blobs.Stored(ctx, m.ID)
		switch {
		case serr != nil:
			e.Error = serr.Error()
		case stored == nil:
			continue
		default:
			e.Raw = stored
		}
		if e.Error != "" {
			r.logger.Warn(ctx, "export: unreadable entry", "id", m.ID, "error", e.Error)
		}
		out = append(out, e)
	}
	return out, nil
}

// ImportReport counts what Import did.
type ImportReport struct {
	Records int      `json:"records"`
	Raw     int      `json:"raw"`
	Failed  []string `json:"failed,omitempty"`
}

// Import stores entries produced by Export. Records go through Save; raw
// entries are restored with their stored meta, so encrypted items keep their
// ciphertext, iv and salt. Entries that carry an error are reported as
// failed and nothing is written for them.
func (r *Repository) Import(ctx context.Context, entries []ExportEntry) (ImportReport, error) {
	var rep ImportReport
	for _, e := range entries {
		switch {
		case e.Error != "":
			rep.Failed = append(rep.Failed, e.ID)
		case e.Record != nil:
			rec := *e.Record
			if rec.ID == "" {
				rec.ID = e.ID
			}
			if _, err := r.Save(ctx, rec); err != nil {
				if errors.Is(err, ErrInvalidRecord) {
					rep.Failed = append(rep.Failed, e.ID)
					continue
				}
				return rep, err
			}
			rep.Records++
		case e.Raw != nil:
			raw := *e.Raw
			if raw.Meta.ID == "" {
				raw.Meta.ID = e.ID
			}
			if raw.Meta.ID != e.ID || int64(len(raw.Data)) != raw.Meta.Size {
				rep.Failed = append(rep.Failed, e.ID)
				continue
			}
			if _, err := r.blobs.Restore(ctx, &raw); err != nil {
				if errors.Is(err, blobstore.ErrInvalidMeta) {
					rep.Failed = append(rep.Failed, e.ID)
					continue
				}
				return rep, fmt.Errorf("import raw %s: %w", e.ID, err)
			}
			rep.Raw++
		default:
			rep.Failed = append(rep.Failed, e.ID)
		}
	}
	return rep, nil
}

// Reason explains why an entry failed the integrity scan.
type Reason string

const (
	ReasonMissing Reason = "missing"
	ReasonInvalid Reason = "invalid"
	ReasonError   Reason = "error"
)

type IntegrityReport struct {
	Valid   int               `json:"valid"`
	Invalid int               `json:"invalid"`
	Issues  map[string]Reason `json:"issues,omitempty"`
}

// CheckIntegrity reads every record entry. It never stops at the first bad
// entry.
func (r *Repository) CheckIntegrity(ctx context.Context) (IntegrityReport, error) {
	rep := IntegrityReport{Issues: make(map[string]Reason)}
	metas, err := r.blobs.List(ctx, blobstore.Filter{Tag: recordTag})
	if err != nil {
		return rep, err
	}
	for _, m := range metas {
		reason := r.check(ctx, m.ID)
		if reason == "" {
			rep.Valid++
			continue
		}
		rep.Invalid++
		rep.Issues[m.ID] = reason
	}
	return rep, nil
}

func (r *Repository) check(ctx context.Context, id string) Reason {
	item, err := r.blobs.Get(ctx, id, r.opts.Passphrase)
	if err != nil {
		return ReasonError
	}
	if item == nil {
		return ReasonMissing
	}
	rec, err := decode(item)
	if errors.Is(err, ErrEncrypted) {
		return ReasonError
	}
	if err != nil || Validate(NormalizeRecord(*rec)) != nil {
		return ReasonInvalid
	}
	return ""
}
