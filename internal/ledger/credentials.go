package ledger

import (
	"context"

	"github.com/roach88/campusledger/internal/authz"
	"github.com/roach88/campusledger/internal/keyspace"
	"github.com/roach88/campusledger/internal/store"
)

// Verification is the answer to verify_cert.
type Verification struct {
	Certificate Certificate `json:"certificate"`
	Valid       bool        `json:"valid"`
}

// MintCert mints a valid soulbound certificate to recipient.
func (e *Engine) MintCert(ctx context.Context, caller, nftID, recipient, titleHash, metadataHash string) (Certificate, error) {
	rec := Certificate{
		NFTID:        nftID,
		Recipient:    recipient,
		TitleHash:    titleHash,
		MetadataHash: metadataHash,
		Status:       StatusValid,
	}

	err := e.apply(ctx, authz.OpMintCert, caller, func(tx *store.Tx) (*mutation, error) {
		key, err := keyspace.Build(keyspace.KindCertificate, nftID)
		if err != nil {
			return nil, err
		}
		err = checkFields(
			field{"recipient_addr", recipient},
			field{"title_hash", titleHash},
			field{"metadata_hash", metadataHash},
		)
		if err != nil {
			return nil, err
		}
		return &mutation{
			kind:    keyspace.KindCertificate,
			key:     key,
			create:  true,
			counter: CounterCerts,
			encode: func(now uint64) ([]byte, error) {
				rec.MintedAt = now
				return rec.encode()
			},
		}, nil
	})
	if err != nil {
		return Certificate{}, err
	}
	return rec, nil
}

// Certificate returns a certificate.
func (e *Engine) Certificate(ctx context.Context, nftID string) (Certificate, error) {
	var rec Certificate
	err := e.read(ctx, authz.OpVerifyCert, func(tx *store.Tx) error {
		key, err := keyspace.Build(keyspace.KindCertificate, nftID)
		if err != nil {
			return err
		}
		rec, err = load(tx, key, func(b []byte) (Certificate, error) { return decodeCertificate(nftID, b) })
		return err
	})
	return rec, err
}

// VerifyCertificate returns a certificate and whether it is still valid.
func (e *Engine) VerifyCertificate(ctx context.Context, nftID string) (Verification, error) {
	cert, err := e.Certificate(ctx, nftID)
	if err != nil {
		return Verification{}, err
	}
	return Verification{Certificate: cert, Valid: cert.Status == StatusValid}, nil
}
