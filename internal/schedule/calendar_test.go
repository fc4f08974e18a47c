package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2030-01-07")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d.Weekday())
	assert.Equal(t, "2030-01-07", d.String())

	for _, bad := range []string{"", "07/01/2030", "2030-13-01", "2030-01-07T10:00:00Z"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestDate_Arithmetic(t *testing.T) {
	from := NewDate(2030, time.February, 27)
	to := from.AddDays(3)

	assert.Equal(t, "2030-03-02", to.String())
	assert.Equal(t, 3, from.DaysUntil(to))
	assert.True(t, from.Before(to))
	assert.True(t, to.After(from))
	assert.True(t, DateOf(time.Date(2030, 2, 27, 23, 59, 0, 0, time.UTC)).Equal(from))
}

func TestDate_AtUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	at := NewDate(2030, time.January, 7).At(NewClock(9, 30), loc)
	assert.Equal(t, 9, at.Hour())
	assert.Equal(t, 30, at.Minute())
	assert.Equal(t, 14, at.UTC().Hour())
}

func TestParseClock(t *testing.T) {
	cases := map[string]Clock{
		"09:00":    NewClock(9, 0),
		"17:45":    NewClock(17, 45),
		"00:00:00": 0,
		" 23:59 ":  NewClock(23, 59),
	}
	for in, want := range cases {
		got, err := ParseClock(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "9", "24:00", "09:00:30", "nine"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseWeekday(t *testing.T) {
	for in, want := range map[string]time.Weekday{
		"Monday": time.Monday,
		"sunday": time.Sunday,
		"SAT":    time.Saturday,
		" wed ":  time.Wednesday,
	} {
		got, err := ParseWeekday(in)
		require.NoError(t, err, in)
		assert.Equal(t, Weekday(want), got, in)
	}

	_, err := ParseWeekday("Funday")
	assert.Error(t, err)

	var w Weekday
	require.NoError(t, json.Unmarshal([]byte(`1`), &w))
	assert.Equal(t, Weekday(time.Monday), w)
	assert.Error(t, json.Unmarshal([]byte(`7`), &w))
}

func TestTemplateJSON(t *testing.T) {
	var payload struct {
		Day   Weekday `json:"day"`
		Start Clock   `json:"start"`
		Date  Date    `json:"date"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"day":"Tuesday","start":"08:15","date":"2030-01-08"}`), &payload))

	assert.Equal(t, Weekday(time.Tuesday), payload.Day)
	assert.Equal(t, NewClock(8, 15), payload.Start)
	assert.Equal(t, NewDate(2030, time.January, 8), payload.Date)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"Tuesday","start":"08:15","date":"2030-01-08"}`, string(out))
}

func TestTemplate_Validate(t *testing.T) {
	valid := Template{
		ProviderID:          uuid.New(),
		Weekday:             Weekday(time.Monday),
		StartTime:           NewClock(9, 0),
		EndTime:             NewClock(10, 0),
		SlotDurationMinutes: 30,
		IsActive:            true,
	}
	require.NoError(t, valid.Validate())

	mutate := func(fn func(*Template)) Template {
		c := valid
		fn(&c)
		return c
	}
	invalid := map[string]Template{
		"no provider":    mutate(func(c *Template) { c.ProviderID = uuid.Nil }),
		"bad weekday":    mutate(func(c *Template) { c.Weekday = 7 }),
		"start == end":   mutate(func(c *Template) { c.EndTime = c.StartTime }),
		"start > end":    mutate(func(c *Template) { c.StartTime = NewClock(11, 0) }),
		"zero duration":  mutate(func(c *Template) { c.SlotDurationMinutes = 0 }),
		"end past day":   mutate(func(c *Template) { c.EndTime = Clock(minutesPerDay + 1) }),
		"negative start": mutate(func(c *Template) { c.StartTime = -1 }),
	}
	for name, tmpl := range invalid {
		err := tmpl.Validate()
		assert.ErrorIs(t, err, ErrInvalidTemplate, name)
	}
}

func TestTemplate_Starts(t *testing.T) {
	tmpl := Template{StartTime: NewClock(9, 0), EndTime: NewClock(10, 0), SlotDurationMinutes: 30}
	assert.Equal(t, []Clock{NewClock(9, 0), NewClock(9, 30)}, tmpl.Starts())

	// a remainder shorter than one slot yields nothing
	tmpl.SlotDurationMinutes = 45
	assert.Equal(t, []Clock{NewClock(9, 0)}, tmpl.Starts())

	tmpl.SlotDurationMinutes = 90
	assert.Empty(t, tmpl.Starts())
}

func TestCandidates_OverlapCollapsesIdenticalInstants(t *testing.T) {
	provider := uuid.New()
	monday := NewDate(2030, time.January, 7)

	templates := []Template{
		{ProviderID: provider, Weekday: Weekday(time.Monday), StartTime: NewClock(9, 30), EndTime: NewClock(10, 30), SlotDurationMinutes: 30, IsActive: true},
		{ProviderID: provider, Weekday: Weekday(time.Monday), StartTime: NewClock(9, 0), EndTime: NewClock(10, 0), SlotDurationMinutes: 30, IsActive: true},
		{ProviderID: provider, Weekday: Weekday(time.Monday), StartTime: NewClock(12, 0), EndTime: NewClock(13, 0), SlotDurationMinutes: 60, IsActive: false},
		{ProviderID: provider, Weekday: Weekday(time.Tuesday), StartTime: NewClock(8, 0), EndTime: NewClock(9, 0), SlotDurationMinutes: 60, IsActive: true},
	}

	keys := Candidates(provider, templates, monday, monday.AddDays(1))

	var got []string
	for _, k := range keys {
		got = append(got, k.Date.String()+" "+k.Time.String())
	}
	assert.Equal(t, []string{
		"2030-01-07 09:00",
		"2030-01-07 09:30",
		"2030-01-07 10:00",
		"2030-01-08 08:00",
	}, got)
}

func TestValidateRange(t *testing.T) {
	from := NewDate(2030, time.January, 1)

	require.NoError(t, ValidateRange(from, from, 1))
	require.NoError(t, ValidateRange(from, from.AddDays(89), 90))

	assert.ErrorIs(t, ValidateRange(from, from.AddDays(90), 90), ErrRangeTooLarge)
	assert.ErrorIs(t, ValidateRange(from, from.AddDays(-1), 90), ErrInvalidInput)
	assert.ErrorIs(t, ValidateRange(Date{}, from, 90), ErrInvalidInput)
}
