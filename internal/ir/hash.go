package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefix for content-addressed link identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainLink = "cascade/link/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// LinkID computes the content-addressed ID of a link row. Creating the
// same link twice yields the same ID, so inserts are idempotent.
func LinkID(l Link) string {
	obj := IRObject{
		"model_x":  IRString(l.ModelX),
		"record_x": IRString(l.RecordX),
		"field_x":  IRString(l.FieldX),
		"model_y":  IRString(l.ModelY),
		"record_y": IRString(l.RecordY),
		"field_y":  IRString(l.FieldY),
	}
	// Strings only; canonical marshaling cannot fail.
	canonical, _ := marshalCanonical(obj)
	return hashWithDomain(DomainLink, canonical)
}
