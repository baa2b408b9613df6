package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/campusledger/internal/codec"
	"github.com/roach88/campusledger/internal/failure"
)

// Lifecycle states.
const (
	StatusActive  = "active"
	StatusEnded   = "ended"
	StatusValid   = "valid"
	StatusRevoked = "revoked"
)

// Record shapes as stored in box values.
var (
	sessionShape     = codec.Shape{codec.Bytes, codec.Bytes, codec.Uint64, codec.Bytes}
	attendanceShape  = codec.Shape{codec.Bytes, codec.Bytes, codec.Uint64}
	certificateShape = codec.Shape{codec.Bytes, codec.Bytes, codec.Bytes, codec.Uint64, codec.Bytes}
	electionShape    = codec.Shape{codec.Bytes, codec.Uint64, codec.Uint64, codec.Bytes}
	voteShape        = codec.Shape{codec.Bytes, codec.Uint64}
	credentialShape  = codec.Shape{codec.Bytes, codec.Bytes, codec.Uint64, codec.Bytes}
	usageShape       = codec.Shape{codec.Bytes, codec.Bytes, codec.Uint64}
)

// Session is an attendance session.
type Session struct {
	ID         string `json:"session_id"`
	CourseCode string `json:"course_code"`
	Room       string `json:"room"`
	StartTime  uint64 `json:"start_time"`
	Status     string `json:"status"`
}

// Attendance is one student's check-in to a session.
type Attendance struct {
	SessionID        string `json:"session_id"`
	StudentID        string `json:"student_id"`
	VerificationHash string `json:"verification_hash"`
	Status           string `json:"status"`
	Timestamp        uint64 `json:"timestamp"`
}

// Certificate is a soulbound certificate. No transfer operation exists.
type Certificate struct {
	NFTID        string `json:"nft_id"`
	Recipient    string `json:"recipient_addr"`
	TitleHash    string `json:"title_hash"`
	MetadataHash string `json:"metadata_hash"`
	MintedAt     uint64 `json:"minted_at"`
	Status       string `json:"status"`
}

// Election is a ballot that votes are cast against.
type Election struct {
	ID         string `json:"election_id"`
	TitleHash  string `json:"title_hash"`
	VoterCount uint64 `json:"voter_count"`
	CreatedAt  uint64 `json:"created_at"`
	Status     string `json:"status"`
}

// Vote is one voter's choice in an election.
type Vote struct {
	ElectionID  string `json:"election_id"`
	VoterHash   string `json:"voter_hash"`
	CandidateID string `json:"candidate_id"`
	VotedAt     uint64 `json:"voted_at"`
}

// Credential is a health credential commitment.
type Credential struct {
	ID             string `json:"credential_id"`
	CommitmentHash string `json:"commitment_hash"`
	IssuerHash     string `json:"issuer_hash"`
	IssuedAt       uint64 `json:"issued_at"`
	Status         string `json:"status"`
}

// Usage is the single recorded use of a credential's proof.
type Usage struct {
	CredentialID string `json:"credential_id"`
	UsageHash    string `json:"usage_hash"`
	Purpose      string `json:"purpose"`
	UsedAt       uint64 `json:"used_at"`
}

func (r Session) encode() ([]byte, error) {
	return sessionShape.Encode([][]byte{
		[]byte(r.CourseCode), []byte(r.Room), codec.PutUint64(r.StartTime), []byte(r.Status),
	})
}

func decodeSession(id string, buf []byte) (Session, error) {
	f, err := sessionShape.Decode(buf)
	if err != nil {
		return Session{}, err
	}
	return Session{
		ID:         id,
		CourseCode: string(f[0]),
		Room:       string(f[1]),
		StartTime:  binary.BigEndian.Uint64(f[2]),
		Status:     string(f[3]),
	}, nil
}

func (r Attendance) encode() ([]byte, error) {
	return attendanceShape.Encode([][]byte{
		[]byte(r.VerificationHash), []byte(r.Status), codec.PutUint64(r.Timestamp),
	})
}

func decodeAttendance(sessionID, studentID string, buf []byte) (Attendance, error) {
	f, err := attendanceShape.Decode(buf)
	if err != nil {
		return Attendance{}, err
	}
	return Attendance{
		SessionID:        sessionID,
		StudentID:        studentID,
		VerificationHash: string(f[0]),
		Status:           string(f[1]),
		Timestamp:        binary.BigEndian.Uint64(f[2]),
	}, nil
}

func (r Certificate) encode() ([]byte, error) {
	return certificateShape.Encode([][]byte{
		[]byte(r.Recipient), []byte(r.TitleHash), []byte(r.MetadataHash),
		codec.PutUint64(r.MintedAt), []byte(r.Status),
	})
}

func decodeCertificate(id string, buf []byte) (Certificate, error) {
	f, err := certificateShape.Decode(buf)
	if err != nil {
		return Certificate{}, err
	}
	return Certificate{
		NFTID:        id,
		Recipient:    string(f[0]),
		TitleHash:    string(f[1]),
		MetadataHash: string(f[2]),
		MintedAt:     binary.BigEndian.Uint64(f[3]),
		Status:       string(f[4]),
	}, nil
}

func (r Election) encode() ([]byte, error) {
	return electionShape.Encode([][]byte{
		[]byte(r.TitleHash), codec.PutUint64(r.VoterCount), codec.PutUint64(r.CreatedAt), []byte(r.Status),
	})
}

func decodeElection(id string, buf []byte) (Election, error) {
	f, err := electionShape.Decode(buf)
	if err != nil {
		return Election{}, err
	}
	return Election{
		ID:         id,
		TitleHash:  string(f[0]),
		VoterCount: binary.BigEndian.Uint64(f[1]),
		CreatedAt:  binary.BigEndian.Uint64(f[2]),
		Status:     string(f[3]),
	}, nil
}

func (r Vote) encode() ([]byte, error) {
	return voteShape.Encode([][]byte{[]byte(r.CandidateID), codec.PutUint64(r.VotedAt)})
}

func decodeVote(electionID, voterHash string, buf []byte) (Vote, error) {
	f, err := voteShape.Decode(buf)
	if err != nil {
		return Vote{}, err
	}
	return Vote{
		ElectionID:  electionID,
		VoterHash:   voterHash,
		CandidateID: string(f[0]),
		VotedAt:     binary.BigEndian.Uint64(f[1]),
	}, nil
}

func (r Credential) encode() ([]byte, error) {
	return credentialShape.Encode([][]byte{
		[]byte(r.CommitmentHash), []byte(r.IssuerHash), codec.PutUint64(r.IssuedAt), []byte(r.Status),
	})
}

func decodeCredential(id string, buf []byte) (Credential, error) {
	f, err := credentialShape.Decode(buf)
	if err != nil {
		return Credential{}, err
	}
	return Credential{
		ID:             id,
		CommitmentHash: string(f[0]),
		IssuerHash:     string(f[1]),
		IssuedAt:       binary.BigEndian.Uint64(f[2]),
		Status:         string(f[3]),
	}, nil
}

func (r Usage) encode() ([]byte, error) {
	return usageShape.Encode([][]byte{[]byte(r.UsageHash), []byte(r.Purpose), codec.PutUint64(r.UsedAt)})
}

func decodeUsage(credentialID string, buf []byte) (Usage, error) {
	f, err := usageShape.Decode(buf)
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		CredentialID: credentialID,
		UsageHash:    string(f[0]),
		Purpose:      string(f[1]),
		UsedAt:       binary.BigEndian.Uint64(f[2]),
	}, nil
}

// field is a named byte argument destined for a record.
type field struct {
	name  string
	value string
}

// checkFields rejects empty byte fields and fields holding the record delimiter.
func checkFields(fields ...field) error {
	for _, f := range fields {
		if f.value == "" {
			return failure.Format("%s is empty", f.name)
		}
		if strings.IndexByte(f.value, codec.Delimiter) >= 0 {
			return failure.Format("%s contains %q", f.name, codec.Delimiter)
		}
	}
	return nil
}

// decodeError attaches the storage key to a decode failure.
func decodeError(key []byte, err error) error {
	var fe *failure.Error
	if errors.As(err, &fe) {
		cp := *fe
		cp.Key = string(key)
		return &cp
	}
	return fmt.Errorf("decode %s: %w", key, err)
}
