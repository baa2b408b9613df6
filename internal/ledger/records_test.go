package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/campusledger/internal/failure"
)

func TestRecords_RoundTrip(t *testing.T) {
	// 0x7c7c... timestamps exercise positional numeric decoding.
	const pipes = 0x7c7c7c7c7c7c7c7c

	t.Run("session", func(t *testing.T) {
		want := Session{ID: "S1", CourseCode: "CS101", Room: "R1", StartTime: pipes, Status: StatusActive}
		buf, err := want.encode()
		require.NoError(t, err)
		got, err := decodeSession("S1", buf)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("attendance", func(t *testing.T) {
		want := Attendance{SessionID: "S1", StudentID: "st", VerificationHash: "h", Status: "present", Timestamp: pipes}
		buf, err := want.encode()
		require.NoError(t, err)
		got, err := decodeAttendance("S1", "st", buf)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("certificate", func(t *testing.T) {
		want := Certificate{NFTID: "N1", Recipient: "R", TitleHash: "T", MetadataHash: "M", MintedAt: pipes, Status: StatusRevoked}
		buf, err := want.encode()
		require.NoError(t, err)
		got, err := decodeCertificate("N1", buf)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("election", func(t *testing.T) {
		want := Election{ID: "E1", TitleHash: "T", VoterCount: 124, CreatedAt: pipes, Status: StatusEnded}
		buf, err := want.encode()
		require.NoError(t, err)
		got, err := decodeElection("E1", buf)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("vote", func(t *testing.T) {
		want := Vote{ElectionID: "E1", VoterHash: "V", CandidateID: "C", VotedAt: pipes}
		buf, err := want.encode()
		require.NoError(t, err)
		got, err := decodeVote("E1", "V", buf)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("credential", func(t *testing.T) {
		want := Credential{ID: "C1", CommitmentHash: "c", IssuerHash: "i", IssuedAt: pipes, Status: StatusValid}
		buf, err := want.encode()
		require.NoError(t, err)
		got, err := decodeCredential("C1", buf)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("usage", func(t *testing.T) {
		want := Usage{CredentialID: "C1", UsageHash: "u", Purpose: "p", UsedAt: pipes}
		buf, err := want.encode()
		require.NoError(t, err)
		got, err := decodeUsage("C1", buf)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestRecords_WrongShape(t *testing.T) {
	vote, err := Vote{CandidateID: "C", VotedAt: 1}.encode()
	require.NoError(t, err)

	_, err = decodeSession("S1", vote)
	require.Error(t, err)
	assert.Contains(t, []failure.Code{failure.CodeShapeMismatch, failure.CodeFormat}, failure.CodeOf(err))

	_, err = decodeVote("E1", "V", append(vote, []byte("|extra")...))
	assert.True(t, failure.HasCode(err, failure.CodeShapeMismatch))
}

func TestDecodeError_AttachesKey(t *testing.T) {
	err := decodeError([]byte("vote:E1:V"), failure.ShapeMismatch(2, 3))
	var fe *failure.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "vote:E1:V", fe.Key)
	assert.Equal(t, failure.CodeShapeMismatch, fe.Code)
}

func TestCheckFields(t *testing.T) {
	assert.NoError(t, checkFields(field{"a", "x"}, field{"b", "y z"}))
	assert.True(t, failure.HasCode(checkFields(field{"a", ""}), failure.CodeFormat))
	assert.True(t, failure.HasCode(checkFields(field{"a", "x|y"}), failure.CodeFormat))
}
