package blobstore

import (
	"errors"

	"github.com/dmitrijs2005/gradekeeper/internal/cryptox"
)

var (
	ErrQuotaExceeded      = errors.New("tier quota exceeded")
	ErrPassphraseRequired = errors.New("encryption requested without passphrase")
	ErrChecksumMismatch   = errors.New("payload checksum mismatch")
	ErrInvalidMeta        = errors.New("invalid item meta")
	ErrNoTiers            = errors.New("no storage tiers configured")
	ErrIndexWrite         = errors.New("index write failed")
	ErrIndexRead          = errors.New("index read failed")

	// ErrDecrypt is returned by Get when the passphrase does not open the item.
	ErrDecrypt = cryptox.ErrDecrypt
)
