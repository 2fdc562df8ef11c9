package blobstore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gradekeeper/internal/cryptox"
	"github.com/dmitrijs2005/gradekeeper/internal/logging"
	"github.com/dmitrijs2005/gradekeeper/internal/timex"
)

// Store composes tiers in priority order. The last tier is the one of last
// resort: a failure there fails the save.
type Store struct {
	tiers  []Backend
	quota  int64
	logger logging.Logger
	now    func() int64
}

type Option func(*Store)

// WithQuota sets the overall quota reported by Usage.
func WithQuota(q int64) Option {
	return func(s *Store) { s.quota = q }
}

func WithClock(now func() int64) Option {
	return func(s *Store) { s.now = now }
}

func New(logger logging.Logger, tiers []Backend, opts ...Option) (*Store, error) {
	if len(tiers) == 0 {
		return nil, ErrNoTiers
	}
	s := &Store{
		tiers:  tiers,
		logger: logger.With("component", "blobstore"),
		now:    timex.NowMillis,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

type SaveOptions struct {
	ID         string
	Kind       Kind
	Type       string
	Encrypt    bool
	Passphrase string
	Tags       []string
	Name       string
	Compress   bool
}

type SaveResult struct {
	ID   string
	Meta Meta
	Tier string
}

func NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id.String(), nil
}

// Save encodes payload (compress, then encrypt) and writes it to the first
// tier that accepts it.
func (s *Store) Save(ctx context.Context, payload Payload, opts SaveOptions) (*SaveResult, error) {
	if payload == nil {
		return nil, errors.New("nil payload")
	}
	if opts.Encrypt && opts.Passphrase == "" {
		return nil, ErrPassphraseRequired
	}

	id := opts.ID
	if id == "" {
		var err error
		if id, err = NewID(); err != nil {
			return nil, err
		}
	}

	_, isText := payload.(TextPayload)
	meta := Meta{
		ID:        id,
		Kind:      opts.Kind,
		Timestamp: s.now(),
		Type:      opts.Type,
		Tags:      append([]string(nil), opts.Tags...),
		Name:      opts.Name,
	}
	if meta.Kind == "" {
		meta.Kind = KindUpload
	}
	if meta.Type == "" {
		if isText {
			meta.Type = "text/plain"
		} else {
			meta.Type = "application/octet-stream"
		}
	}

	data := payload.Bytes()

	if opts.Compress && isText {
		packed, err := compress(data)
		if err != nil {
			s.logger.Warn(ctx, "compression failed, storing uncompressed", "id", id, "error", err)
		} else {
			data = packed
			meta.Compressed = true
		}
	}

	if opts.Encrypt {
		sealed, err := cryptox.SealWithPassphrase(data, opts.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("encrypt %s: %w", id, err)
		}
		data = sealed.Ciphertext
		meta.Encrypted = true
		meta.IV = base64.StdEncoding.EncodeToString(sealed.Nonce)
		meta.Salt = base64.StdEncoding.EncodeToString(sealed.Salt)
	}

	meta.Size = int64(len(data))
	meta.Checksum = checksum(data)
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	rec := &Record{Meta: meta, Data: data}
	tier, err := s.put(ctx, rec)
	if err != nil {
		return nil, err
	}
	return &SaveResult{ID: id, Meta: meta, Tier: tier}, nil
}

func (s *Store) put(ctx context.Context, rec *Record) (string, error) {
	last := len(s.tiers) - 1
	for i, t := range s.tiers {
		if i < last && !s.hasRoom(ctx, t, rec.Meta.Size) {
			continue
		}
		err := t.Put(ctx, rec)
		if err != nil {
			if i == last {
				return "", fmt.Errorf("save %s to %s tier: %w", rec.Meta.ID, t.Name(), err)
			}
			s.logger.Warn(ctx, "tier write failed, falling back", "id", rec.Meta.ID, "tier", t.Name(), "error", err)
			continue
		}
		// an id lives in exactly one tier
		for j, other := range s.tiers {
			if j == i {
				continue
			}
			if err := other.Delete(ctx, rec.Meta.ID); err != nil {
				s.logger.Warn(ctx, "stale copy not removed", "id", rec.Meta.ID, "tier", other.Name(), "error", err)
			}
		}
		s.logger.Debug(ctx, "item saved", "id", rec.Meta.ID, "tier", t.Name(), "size", rec.Meta.Size)
		return t.Name(), nil
	}
	return "", ErrNoTiers
}

func (s *Store) hasRoom(ctx context.Context, t Backend, size int64) bool {
	u, err := t.Usage(ctx)
	if err != nil {
		s.logger.Warn(ctx, "tier usage unavailable", "tier", t.Name(), "error", err)
		return false
	}
	if u.Quota == 0 {
		return true
	}
	return u.Used+size < u.Quota
}

// Get returns the decoded item, or (nil, nil) when no tier holds id.
func (s *Store) Get(ctx context.Context, id, passphrase string) (*Item, error) {
	rec, err := s.find(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}

	meta := rec.Meta
	data := rec.Data
	if meta.Checksum != "" && checksum(data) != meta.Checksum {
		return nil, fmt.Errorf("%w: %s", ErrChecksumMismatch, id)
	}

	if meta.Encrypted {
		if passphrase == "" {
			return &Item{Meta: meta, Data: BinaryPayload(data), Opaque: true}, nil
		}
		nonce, err := base64.StdEncoding.DecodeString(meta.IV)
		if err != nil {
			return nil, fmt.Errorf("%w: bad iv: %v", ErrDecrypt, err)
		}
		salt, err := base64.StdEncoding.DecodeString(meta.Salt)
		if err != nil {
			return nil, fmt.Errorf("%w: bad salt: %v", ErrDecrypt, err)
		}
		data, err = cryptox.OpenWithPassphrase(data, nonce, salt, passphrase)
		if err != nil {
			return nil, err
		}
	}

	if meta.Compressed {
		plain, err := decompress(data)
		if err != nil {
			s.logger.Warn(ctx, "decompression failed, returning raw bytes", "id", id, "error", err)
			return &Item{Meta: meta, Data: BinaryPayload(data)}, nil
		}
		data = plain
	}

	if meta.IsText() {
		return &Item{Meta: meta, Data: TextPayload(data)}, nil
	}
	return &Item{Meta: meta, Data: BinaryPayload(data)}, nil
}

func (s *Store) find(ctx context.Context, id string) (*Record, error) {
	for _, t := range s.tiers {
		rec, err := t.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get %s from %s tier: %w", id, t.Name(), err)
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}

// Stored returns id exactly as its tier holds it: stored bytes and meta,
// with no checksum check, decryption or decompression. (nil, nil) when no
// tier holds id.
func (s *Store) Stored(ctx context.Context, id string) (*Record, error) {
	return s.find(ctx, id)
}

// Restore writes a record obtained from Stored back as is. Nothing is
// re-encoded, so an encrypted item stays sealed under its own passphrase.
func (s *Store) Restore(ctx context.Context, rec *Record) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("%w: nil record", ErrInvalidMeta)
	}
	if err := rec.Meta.Validate(); err != nil {
		return "", err
	}
	cp := &Record{Meta: rec.Meta, Data: append([]byte(nil), rec.Data...)}
	cp.Meta.Tags = append([]string(nil), rec.Meta.Tags...)
	return s.put(ctx, cp)
}

// Meta returns only the metadata of id without decoding the payload.
func (s *Store) Meta(ctx context.Context, id string) (*Meta, error) {
	rec, err := s.find(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	return &rec.Meta, nil
}

// List merges every tier and applies f. Results are ordered by timestamp,
// then id.
func (s *Store) List(ctx context.Context, f Filter) ([]Meta, error) {
	var out []Meta
	for _, t := range s.tiers {
		ms, err := t.List(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("list %s tier: %w", t.Name(), err)
		}
		out = append(out, ms...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Remove deletes id from every tier.
func (s *Store) Remove(ctx context.Context, id string) error {
	var errs []error
	for _, t := range s.tiers {
		if err := t.Delete(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("remove %s from %s tier: %w", id, t.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// CleanupOptions select items to remove. MaxAge and Predicate must both hold
// when both are set; with neither set nothing is removed. Limit of zero means
// no limit.
type CleanupOptions struct {
	MaxAge    time.Duration
	Predicate func(Meta) bool
	Limit     int
}

// Cleanup removes matching items oldest first and returns how many went.
func (s *Store) Cleanup(ctx context.Context, opts CleanupOptions) (int, error) {
	if opts.MaxAge <= 0 && opts.Predicate == nil {
		return 0, nil
	}

	all, err := s.List(ctx, Filter{})
	if err != nil {
		return 0, err
	}

	cutoff := s.now() - opts.MaxAge.Milliseconds()
	removed := 0
	for _, m := range all {
		if opts.Limit > 0 && removed >= opts.Limit {
			break
		}
		if opts.MaxAge > 0 && m.Timestamp > cutoff {
			continue
		}
		if opts.Predicate != nil && !opts.Predicate(m) {
			continue
		}
		if err := s.Remove(ctx, m.ID); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info(ctx, "cleanup finished", "removed", removed)
	}
	return removed, nil
}

// Usage reports byte usage. FastBytes is always the first tier; Usage sums
// every tier; Quota is set only when configured.
type Usage struct {
	Quota     *int64      `json:"quota,omitempty"`
	Usage     *int64      `json:"usage,omitempty"`
	FastBytes int64       `json:"lsBytes"`
	Tiers     []TierUsage `json:"tiers"`
}

func (s *Store) Usage(ctx context.Context) (Usage, error) {
	var u Usage
	var total int64
	for i, t := range s.tiers {
		tu, err := t.Usage(ctx)
		if err != nil {
			return Usage{}, fmt.Errorf("usage of %s tier: %w", t.Name(), err)
		}
		if i == 0 {
			u.FastBytes = tu.Used
		}
		total += tu.Used
		u.Tiers = append(u.Tiers, tu)
	}
	u.Usage = &total
	if s.quota > 0 {
		q := s.quota
		u.Quota = &q
	}
	return u, nil
}
