package ledger

import (
	"context"

	"github.com/roach88/campusledger/internal/authz"
	"github.com/roach88/campusledger/internal/failure"
	"github.com/roach88/campusledger/internal/keyspace"
	"github.com/roach88/campusledger/internal/store"
)

// StoreCredential records a valid health credential commitment.
func (e *Engine) StoreCredential(ctx context.Context, caller, credentialID, commitmentHash, issuerHash string) (Credential, error) {
	rec := Credential{ID: credentialID, CommitmentHash: commitmentHash, IssuerHash: issuerHash, Status: StatusValid}

	err := e.apply(ctx, authz.OpStoreCredential, caller, func(tx *store.Tx) (*mutation, error) {
		key, err := keyspace.Build(keyspace.KindCredential, credentialID)
		if err != nil {
			return nil, err
		}
		if err := checkFields(field{"commitment_hash", commitmentHash}, field{"issuer_hash", issuerHash}); err != nil {
			return nil, err
		}
		if e.duplicates[keyspace.KindCredential] == Overwrite {
			prev, err := loadCredential(tx, key, credentialID)
			if err != nil && !failure.HasCode(err, failure.CodeNotFound) {
				return nil, err
			}
			if err == nil && prev.Status == StatusRevoked {
				rec.Status = StatusRevoked
			}
		}
		return &mutation{
			kind:    keyspace.KindCredential,
			key:     key,
			create:  true,
			counter: CounterCredentials,
			encode: func(now uint64) ([]byte, error) {
				rec.IssuedAt = now
				return rec.encode()
			},
		}, nil
	})
	if err != nil {
		return Credential{}, err
	}
	return rec, nil
}

// RecordUsage records the use of a credential's proof. Each credential has one
// usage slot.
func (e *Engine) RecordUsage(ctx context.Context, caller, credentialID, usageHash, purpose string) (Usage, error) {
	rec := Usage{CredentialID: credentialID, UsageHash: usageHash, Purpose: purpose}

	err := e.apply(ctx, authz.OpRecordUsage, caller, func(tx *store.Tx) (*mutation, error) {
		key, err := keyspace.Build(keyspace.KindUsage, credentialID)
		if err != nil {
			return nil, err
		}
		if err := checkFields(field{"usage_hash", usageHash}, field{"purpose", purpose}); err != nil {
			return nil, err
		}

		if e.lifecycle {
			ckey, err := keyspace.Build(keyspace.KindCredential, credentialID)
			if err != nil {
				return nil, err
			}
			cred, err := loadCredential(tx, ckey, credentialID)
			if err != nil {
				return nil, err
			}
			if cred.Status != StatusValid {
				return nil, failure.Closed(string(ckey), cred.Status)
			}
		}

		return &mutation{
			kind:    keyspace.KindUsage,
			key:     key,
			create:  true,
			counter: CounterUsages,
			encode: func(now uint64) ([]byte, error) {
				rec.UsedAt = now
				return rec.encode()
			},
		}, nil
	})
	if err != nil {
		return Usage{}, err
	}
	return rec, nil
}

// RevokeCredential moves a credential from valid to revoked.
func (e *Engine) RevokeCredential(ctx context.Context, caller, credentialID string) (Credential, error) {
	var rec Credential

	err := e.apply(ctx, authz.OpRevokeCredential, caller, func(tx *store.Tx) (*mutation, error) {
		key, err := keyspace.Build(keyspace.KindCredential, credentialID)
		if err != nil {
			return nil, err
		}
		rec, err = loadCredential(tx, key, credentialID)
		if err != nil {
			return nil, err
		}
		if rec.Status != StatusValid {
			return nil, failure.InvalidTransition(string(key), rec.Status, StatusRevoked)
		}
		rec.Status = StatusRevoked
		return &mutation{
			kind:   keyspace.KindCredential,
			key:    key,
			encode: func(uint64) ([]byte, error) { return rec.encode() },
		}, nil
	})
	if err != nil {
		return Credential{}, err
	}
	return rec, nil
}

// Credential returns a health credential.
func (e *Engine) Credential(ctx context.Context, credentialID string) (Credential, error) {
	var rec Credential
	err := e.read(ctx, authz.OpGetCredential, func(tx *store.Tx) error {
		key, err := keyspace.Build(keyspace.KindCredential, credentialID)
		if err != nil {
			return err
		}
		rec, err = loadCredential(tx, key, credentialID)
		return err
	})
	return rec, err
}

// CheckUsage returns the recorded usage of a credential.
// Returns NOT_FOUND if the credential has not been used.
func (e *Engine) CheckUsage(ctx context.Context, credentialID string) (Usage, error) {
	var rec Usage
	err := e.read(ctx, authz.OpCheckUsage, func(tx *store.Tx) error {
		key, err := keyspace.Build(keyspace.KindUsage, credentialID)
		if err != nil {
			return err
		}
		rec, err = load(tx, key, func(b []byte) (Usage, error) { return decodeUsage(credentialID, b) })
		return err
	})
	return rec, err
}

func loadCredential(tx *store.Tx, key []byte, credentialID string) (Credential, error) {
	return load(tx, key, func(b []byte) (Credential, error) { return decodeCredential(credentialID, b) })
}
