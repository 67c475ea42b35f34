// Package codec provides the single process-wide binary encoder used for
// every serialization site: node payloads, the PFM header and footer, and
// WAL command records. Centralizing it here means a future format change
// only touches one file.
package codec

import (
	"bytes"
	"encoding/gob"
)

// Version identifies the encoding scheme in effect. It is persisted in the
// PFM header as the file's version byte, right after a magic byte; a
// reader that does not recognize it must refuse to open the file rather
// than guess.
const Version uint8 = 1

// Encode gob-encodes v into a freshly allocated byte slice.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode gob-decodes data into v, which must be a pointer.
func Decode(data []byte, v any) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	return dec.Decode(v)
}
