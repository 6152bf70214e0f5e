package certification

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Signer produces issuer signatures binding a certificate to its grade
// and the integrity hash of the underlying quote. Signatures are HMAC
// JWTs: verifiable offline by anyone holding the issuer key, without
// claiming more token security than the platform documents.
type Signer struct {
	key    []byte
	issuer string
}

func NewSigner(key, issuer string) *Signer {
	return &Signer{key: []byte(key), issuer: issuer}
}

// Sign returns the issuer signature for a certificate.
func (s *Signer) Sign(certID, projectID, grade, quoteHash string, issuedAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss":        s.issuer,
		"cert_id":    certID,
		"project_id": projectID,
		"grade":      grade,
		"quote_hash": quoteHash,
		"iat":        issuedAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign certification: %w", err)
	}
	return signed, nil
}

// newCertID mirrors the issued-at ordering of certificate ids so a
// project's history reads chronologically.
func newCertID(now time.Time) string {
	return fmt.Sprintf("CERT-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

// newPublicToken generates the opaque public verification token.
func newPublicToken() string {
	return "PUB-" + uuid.NewString()
}
