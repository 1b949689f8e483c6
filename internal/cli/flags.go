package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// The flag types below remember whether they were set on the command line so
// config-file values only fill in what the user left alone.

type stringFlag struct {
	Value  string
	WasSet bool
}

func (s *stringFlag) String() string { return s.Value }
func (s *stringFlag) Set(v string) error {
	s.Value = v
	s.WasSet = true
	return nil
}

func (s *stringFlag) fill(v string) {
	if !s.WasSet && v != "" {
		s.Value = v
	}
}

type intFlag struct {
	Value  int
	WasSet bool
}

func (i *intFlag) String() string { return strconv.Itoa(i.Value) }
func (i *intFlag) Set(v string) error {
	parsed, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("expected an integer, got %q", v)
	}
	i.Value = parsed
	i.WasSet = true
	return nil
}

func (i *intFlag) fill(v int) {
	if !i.WasSet && v > 0 {
		i.Value = v
	}
}

// secondsFlag accepts fractional seconds ("0.5") and stores a duration.
type secondsFlag struct {
	Value  time.Duration
	WasSet bool
}

func (d *secondsFlag) String() string {
	return strconv.FormatFloat(d.Value.Seconds(), 'f', -1, 64)
}

func (d *secondsFlag) Set(v string) error {
	secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fmt.Errorf("expected seconds, got %q", v)
	}
	if secs < 0 {
		return fmt.Errorf("seconds must be >= 0, got %q", v)
	}
	d.Value = time.Duration(secs * float64(time.Second))
	d.WasSet = true
	return nil
}

func (d *secondsFlag) fill(secs *float64) {
	if !d.WasSet && secs != nil && *secs >= 0 {
		d.Value = time.Duration(*secs * float64(time.Second))
	}
}

type boolFlag struct {
	Value  bool
	WasSet bool
}

func (b *boolFlag) String() string { return strconv.FormatBool(b.Value) }
func (b *boolFlag) Set(v string) error {
	v = strings.ToLower(strings.TrimSpace(v))
	b.Value = v == "true" || v == "1" || v == "yes" || v == "y"
	b.WasSet = true
	return nil
}

func (b *boolFlag) IsBoolFlag() bool { return true }

// listFlag collects comma-separated values; repeating the flag appends.
type listFlag struct {
	Values []string
	WasSet bool
}

func (l *listFlag) String() string { return strings.Join(l.Values, ",") }
func (l *listFlag) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			l.Values = append(l.Values, part)
		}
	}
	l.WasSet = true
	return nil
}

func (l *listFlag) fill(v []string) {
	if !l.WasSet && v != nil {
		l.Values = v
	}
}
