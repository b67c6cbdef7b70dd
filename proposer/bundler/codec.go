package bundler

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/latticelabs/lattice/proposer/types"
	"github.com/pkg/errors"
)

// Encoded is a bundle in its three wire forms: the canonical pre-gzip
// JSON the proposer signs, the gzip of that JSON, and the Base64 text
// uploaded to the content store. The forms are derived in that order, so
// a published payload can always be decoded back to the signed bytes.
type Encoded struct {
	JSON   []byte
	Gzip   []byte
	Base64 []byte
}

// EncodeBundle produces the wire forms of a bundle.
func EncodeBundle(b *types.Bundle) (*Encoded, error) {
	payload, err := b.SigningPayload()
	if err != nil {
		return nil, errors.Wrap(err, "could not serialize bundle")
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, errors.Wrap(err, "could not compress bundle")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "could not finish compression")
	}
	gz := buf.Bytes()
	b64 := make([]byte, base64.StdEncoding.EncodedLen(len(gz)))
	base64.StdEncoding.Encode(b64, gz)
	return &Encoded{JSON: payload, Gzip: gz, Base64: b64}, nil
}

// DecodeBundle reverses EncodeBundle from the content-store text form.
func DecodeBundle(b64 []byte) (*types.Bundle, error) {
	gz := make([]byte, base64.StdEncoding.DecodedLen(len(b64)))
	n, err := base64.StdEncoding.Decode(gz, b64)
	if err != nil {
		return nil, errors.Wrap(err, "payload is not base64")
	}
	return DecodeGzippedBundle(gz[:n])
}

// DecodeGzippedBundle decodes the gzip form, the shape spooled to
// quarantine.
func DecodeGzippedBundle(gz []byte) (*types.Bundle, error) {
	zr, err := gzip.NewReader(bytes.NewReader(gz))
	if err != nil {
		return nil, errors.Wrap(err, "payload is not gzip")
	}
	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.Wrap(err, "could not decompress bundle")
	}
	if err := zr.Close(); err != nil {
		return nil, err
	}
	b := &types.Bundle{}
	if err := json.Unmarshal(payload, b); err != nil {
		return nil, errors.Wrap(err, "payload is not a bundle")
	}
	return b, nil
}
