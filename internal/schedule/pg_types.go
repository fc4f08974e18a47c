package schedule

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const microsPerMinute = int64(time.Minute / time.Microsecond)

// DateValue lets pgx encode a Date into a DATE column.
func (d Date) DateValue() (pgtype.Date, error) {
	return pgtype.Date{Time: d.t, Valid: !d.t.IsZero()}, nil
}

// ScanDate lets pgx decode a DATE column into a Date.
func (d *Date) ScanDate(v pgtype.Date) error {
	if !v.Valid {
		*d = Date{}
		return nil
	}
	if v.InfinityModifier != pgtype.Finite {
		return errors.New("cannot scan infinite date")
	}
	*d = DateOf(v.Time)
	return nil
}

// TimeValue lets pgx encode a Clock into a TIME column.
func (c Clock) TimeValue() (pgtype.Time, error) {
	return pgtype.Time{Microseconds: int64(c) * microsPerMinute, Valid: true}, nil
}

// ScanTime lets pgx decode a TIME column into a Clock.
func (c *Clock) ScanTime(v pgtype.Time) error {
	if !v.Valid {
		return errors.New("cannot scan NULL into Clock")
	}
	*c = Clock(v.Microseconds / microsPerMinute)
	return nil
}
