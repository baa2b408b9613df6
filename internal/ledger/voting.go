package ledger

import (
	"context"

	"github.com/roach88/campusledger/internal/authz"
	"github.com/roach88/campusledger/internal/failure"
	"github.com/roach88/campusledger/internal/keyspace"
	"github.com/roach88/campusledger/internal/store"
)

// Tally is the vote count of an election by candidate.
type Tally struct {
	ElectionID string            `json:"election_id"`
	Status     string            `json:"status"`
	Counts     map[string]uint64 `json:"counts"`
	Total      uint64            `json:"total"`
}

// CreateElection creates an active election.
func (e *Engine) CreateElection(ctx context.Context, caller, electionID, titleHash string, voterCount uint64) (Election, error) {
	rec := Election{ID: electionID, TitleHash: titleHash, VoterCount: voterCount, Status: StatusActive}

	err := e.apply(ctx, authz.OpCreateElection, caller, func(tx *store.Tx) (*mutation, error) {
		key, err := keyspace.Build(keyspace.KindElection, electionID)
		if err != nil {
			return nil, err
		}
		if err := checkFields(field{"title_hash", titleHash}); err != nil {
			return nil, err
		}
		if e.duplicates[keyspace.KindElection] == Overwrite {
			prev, err := loadElection(tx, key, electionID)
			if err != nil && !failure.HasCode(err, failure.CodeNotFound) {
				return nil, err
			}
			if err == nil && prev.Status == StatusEnded {
				rec.Status = StatusEnded
			}
		}
		return &mutation{
			kind:    keyspace.KindElection,
			key:     key,
			create:  true,
			counter: CounterElections,
			encode: func(now uint64) ([]byte, error) {
				rec.CreatedAt = now
				return rec.encode()
			},
		}, nil
	})
	if err != nil {
		return Election{}, err
	}
	return rec, nil
}

// CastVote records voterHash's choice in an election. Votes have no counter.
func (e *Engine) CastVote(ctx context.Context, caller, electionID, voterHash, candidateID string) (Vote, error) {
	rec := Vote{ElectionID: electionID, VoterHash: voterHash, CandidateID: candidateID}

	err := e.apply(ctx, authz.OpCastVote, caller, func(tx *store.Tx) (*mutation, error) {
		key, err := keyspace.Build(keyspace.KindVote, electionID, voterHash)
		if err != nil {
			return nil, err
		}
		if err := checkFields(field{"candidate_id", candidateID}); err != nil {
			return nil, err
		}

		if e.lifecycle {
			ekey, err := keyspace.Build(keyspace.KindElection, electionID)
			if err != nil {
				return nil, err
			}
			el, err := loadElection(tx, ekey, electionID)
			if err != nil {
				return nil, err
			}
			if el.Status != StatusActive {
				return nil, failure.Closed(string(ekey), el.Status)
			}
		}

		return &mutation{
			kind:   keyspace.KindVote,
			key:    key,
			create: true,
			encode: func(now uint64) ([]byte, error) {
				rec.VotedAt = now
				return rec.encode()
			},
		}, nil
	})
	if err != nil {
		return Vote{}, err
	}
	return rec, nil
}

// EndElection moves an election from active to ended.
func (e *Engine) EndElection(ctx context.Context, caller, electionID string) (Election, error) {
	var rec Election

	err := e.apply(ctx, authz.OpEndElection, caller, func(tx *store.Tx) (*mutation, error) {
		key, err := keyspace.Build(keyspace.KindElection, electionID)
		if err != nil {
			return nil, err
		}
		rec, err = loadElection(tx, key, electionID)
		if err != nil {
			return nil, err
		}
		if rec.Status != StatusActive {
			return nil, failure.InvalidTransition(string(key), rec.Status, StatusEnded)
		}
		rec.Status = StatusEnded
		return &mutation{
			kind:   keyspace.KindElection,
			key:    key,
			encode: func(uint64) ([]byte, error) { return rec.encode() },
		}, nil
	})
	if err != nil {
		return Election{}, err
	}
	return rec, nil
}

// Election returns an election.
func (e *Engine) Election(ctx context.Context, electionID string) (Election, error) {
	var rec Election
	err := e.read(ctx, authz.OpGetElection, func(tx *store.Tx) error {
		key, err := keyspace.Build(keyspace.KindElection, electionID)
		if err != nil {
			return err
		}
		rec, err = loadElection(tx, key, electionID)
		return err
	})
	return rec, err
}

// Vote returns one voter's ballot.
func (e *Engine) Vote(ctx context.Context, electionID, voterHash string) (Vote, error) {
	var rec Vote
	err := e.read(ctx, authz.OpGetVote, func(tx *store.Tx) error {
		key, err := keyspace.Build(keyspace.KindVote, electionID, voterHash)
		if err != nil {
			return err
		}
		rec, err = load(tx, key, func(b []byte) (Vote, error) { return decodeVote(electionID, voterHash, b) })
		return err
	})
	return rec, err
}

// Tally counts an election's votes by candidate.
// Returns NOT_FOUND if the election does not exist.
func (e *Engine) Tally(ctx context.Context, electionID string) (Tally, error) {
	t := Tally{ElectionID: electionID, Counts: map[string]uint64{}}
	err := e.read(ctx, authz.OpTally, func(tx *store.Tx) error {
		ekey, err := keyspace.Build(keyspace.KindElection, electionID)
		if err != nil {
			return err
		}
		el, err := loadElection(tx, ekey, electionID)
		if err != nil {
			return err
		}
		t.Status = el.Status

		prefix, err := keyspace.Prefix(keyspace.KindVote, electionID)
		if err != nil {
			return err
		}
		boxes, err := tx.Scan(prefix)
		if err != nil {
			return err
		}
		for _, b := range boxes {
			v, err := decodeVote(electionID, "", b.Value)
			if err != nil {
				return decodeError(b.Key, err)
			}
			t.Counts[v.CandidateID]++
			t.Total++
		}
		return nil
	})
	if err != nil {
		return Tally{}, err
	}
	return t, nil
}

func loadElection(tx *store.Tx, key []byte, electionID string) (Election, error) {
	return load(tx, key, func(b []byte) (Election, error) { return decodeElection(electionID, b) })
}
