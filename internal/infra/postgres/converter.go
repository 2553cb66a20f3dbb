package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// uuidToPgtype converts uuid.UUID to pgtype.UUID
func uuidToPgtype(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// pgtypeToUUID converts pgtype.UUID to uuid.UUID
func pgtypeToUUID(id pgtype.UUID) uuid.UUID {
	return id.Bytes
}

// timeToPgtype converts time.Time to pgtype.Timestamptz
func timeToPgtype(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

// pgtypeToTime converts pgtype.Timestamptz to time.Time
func pgtypeToTime(t pgtype.Timestamptz) time.Time {
	return t.Time
}
