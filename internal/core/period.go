package core

import "fmt"

// Period identifies one budgeting cycle as a (year, month) pair.
// Periods are totally ordered by year, then month.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// NewPeriod creates a Period from year and month.
func NewPeriod(year, month int) Period {
	return Period{Year: year, Month: month}
}

// Validate rejects malformed or out-of-range periods before any query runs.
func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidPeriod, p.Month)
	}
	if p.Year < 1 || p.Year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidPeriod, p.Year)
	}
	return nil
}

// Compare returns -1, 0 or 1 depending on whether p is before, equal to or
// after o in the (year, month) ordering.
func (p Period) Compare(o Period) int {
	if p.Year != o.Year {
		if p.Year < o.Year {
			return -1
		}
		return 1
	}
	if p.Month != o.Month {
		if p.Month < o.Month {
			return -1
		}
		return 1
	}
	return 0
}

// Before reports whether p is strictly earlier than o.
func (p Period) Before(o Period) bool {
	return p.Compare(o) < 0
}

// After reports whether p is strictly later than o.
func (p Period) After(o Period) bool {
	return p.Compare(o) > 0
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}
