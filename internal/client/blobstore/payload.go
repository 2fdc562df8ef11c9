package blobstore

// Payload is either TextPayload or BinaryPayload.
type Payload interface {
	Bytes() []byte
	isPayload()
}

type TextPayload string

func (p TextPayload) Bytes() []byte { return []byte(p) }
func (TextPayload) isPayload()      {}

type BinaryPayload []byte

func (p BinaryPayload) Bytes() []byte { return []byte(p) }
func (BinaryPayload) isPayload()      {}

// Item is what Get returns. Opaque is set when an encrypted payload was read
// without a passphrase and Data still holds ciphertext.
type Item struct {
	Meta   Meta
	Data   Payload
	Opaque bool
}

// Text returns the payload as a string when it was decoded as text.
func (i *Item) Text() (string, bool) {
	t, ok := i.Data.(TextPayload)
	return string(t), ok
}
