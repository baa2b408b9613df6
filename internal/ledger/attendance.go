package ledger

import (
	"context"

	"github.com/roach88/campusledger/internal/authz"
	"github.com/roach88/campusledger/internal/failure"
	"github.com/roach88/campusledger/internal/keyspace"
	"github.com/roach88/campusledger/internal/store"
)

// StartSession creates an active session stamped with the current time.
func (e *Engine) StartSession(ctx context.Context, caller, sessionID, courseCode, room string) (Session, error) {
	rec := Session{ID: sessionID, CourseCode: courseCode, Room: room, Status: StatusActive}

	err := e.apply(ctx, authz.OpStartSession, caller, func(tx *store.Tx) (*mutation, error) {
		key, err := keyspace.Build(keyspace.KindSession, sessionID)
		if err != nil {
			return nil, err
		}
		if err := checkFields(field{"course_code", courseCode}, field{"room", room}); err != nil {
			return nil, err
		}
		if e.duplicates[keyspace.KindSession] == Overwrite {
			prev, err := loadSession(tx, key, sessionID)
			if err != nil && !failure.HasCode(err, failure.CodeNotFound) {
				return nil, err
			}
			if err == nil && prev.Status == StatusEnded {
				rec.Status = StatusEnded
			}
		}
		return &mutation{
			kind:    keyspace.KindSession,
			key:     key,
			create:  true,
			counter: CounterSessions,
			encode: func(now uint64) ([]byte, error) {
				rec.StartTime = now
				return rec.encode()
			},
		}, nil
	})
	if err != nil {
		return Session{}, err
	}
	return rec, nil
}

// EndSession moves a session from active to ended.
func (e *Engine) EndSession(ctx context.Context, caller, sessionID string) (Session, error) {
	var rec Session

	err := e.apply(ctx, authz.OpEndSession, caller, func(tx *store.Tx) (*mutation, error) {
		key, err := keyspace.Build(keyspace.KindSession, sessionID)
		if err != nil {
			return nil, err
		}
		rec, err = loadSession(tx, key, sessionID)
		if err != nil {
			return nil, err
		}
		if rec.Status != StatusActive {
			return nil, failure.InvalidTransition(string(key), rec.Status, StatusEnded)
		}
		rec.Status = StatusEnded
		return &mutation{
			kind:   keyspace.KindSession,
			key:    key,
			encode: func(uint64) ([]byte, error) { return rec.encode() },
		}, nil
	})
	if err != nil {
		return Session{}, err
	}
	return rec, nil
}

// RecordAttendance writes a student's check-in to a session.
//
// status is caller-supplied free text ("present", "late", ...), not the
// session lifecycle.
func (e *Engine) RecordAttendance(ctx context.Context, caller, sessionID, studentID, verificationHash, status string) (Attendance, error) {
	rec := Attendance{
		SessionID:        sessionID,
		StudentID:        studentID,
		VerificationHash: verificationHash,
		Status:           status,
	}

	err := e.apply(ctx, authz.OpRecordAttendance, caller, func(tx *store.Tx) (*mutation, error) {
		key, err := keyspace.Build(keyspace.KindAttendance, sessionID, studentID)
		if err != nil {
			return nil, err
		}
		if err := checkFields(field{"verification_hash", verificationHash}, field{"status", status}); err != nil {
			return nil, err
		}

		if e.lifecycle {
			skey, err := keyspace.Build(keyspace.KindSession, sessionID)
			if err != nil {
				return nil, err
			}
			sess, err := loadSession(tx, skey, sessionID)
			if err != nil {
				return nil, err
			}
			if sess.Status != StatusActive {
				return nil, failure.Closed(string(skey), sess.Status)
			}
		}

		return &mutation{
			kind:    keyspace.KindAttendance,
			key:     key,
			create:  true,
			counter: CounterRecords,
			encode: func(now uint64) ([]byte, error) {
				rec.Timestamp = now
				return rec.encode()
			},
		}, nil
	})
	if err != nil {
		return Attendance{}, err
	}
	return rec, nil
}

// Session returns a session.
func (e *Engine) Session(ctx context.Context, sessionID string) (Session, error) {
	var rec Session
	err := e.read(ctx, authz.OpGetSession, func(tx *store.Tx) error {
		key, err := keyspace.Build(keyspace.KindSession, sessionID)
		if err != nil {
			return err
		}
		rec, err = loadSession(tx, key, sessionID)
		return err
	})
	return rec, err
}

// Attendance returns one student's record in a session.
func (e *Engine) Attendance(ctx context.Context, sessionID, studentID string) (Attendance, error) {
	var rec Attendance
	err := e.read(ctx, authz.OpGetRecord, func(tx *store.Tx) error {
		key, err := keyspace.Build(keyspace.KindAttendance, sessionID, studentID)
		if err != nil {
			return err
		}
		rec, err = load(tx, key, func(b []byte) (Attendance, error) {
			return decodeAttendance(sessionID, studentID, b)
		})
		return err
	})
	return rec, err
}

// SessionAttendance returns every attendance record of a session in student
// key order. A session with no records, or no session at all, yields an
// empty slice.
func (e *Engine) SessionAttendance(ctx context.Context, sessionID string) ([]Attendance, error) {
	records := []Attendance{}
	err := e.read(ctx, authz.OpListAttendance, func(tx *store.Tx) error {
		prefix, err := keyspace.Prefix(keyspace.KindAttendance, sessionID)
		if err != nil {
			return err
		}
		boxes, err := tx.Scan(prefix)
		if err != nil {
			return err
		}
		for _, b := range boxes {
			_, parts, err := keyspace.Parse(b.Key)
			if err != nil {
				return err
			}
			rec, err := decodeAttendance(parts[0], parts[1], b.Value)
			if err != nil {
				return decodeError(b.Key, err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func loadSession(tx *store.Tx, key []byte, sessionID string) (Session, error) {
	return load(tx, key, func(b []byte) (Session, error) { return decodeSession(sessionID, b) })
}
