package util

import (
    "strconv"
    "testing"
    "time"
)

func TestParseTimeRFC3339(t *testing.T) {
    s := "2024-10-10T10:10:10Z"
    got, ok := ParseTime(s)
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.UTC().Format(time.RFC3339) != s {
        t.Fatalf("unexpected time %v", got)
    }
}

func TestParseTimeUnix(t *testing.T) {
    ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
    got, ok := ParseTime(strconv.FormatInt(ts, 10))
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.Unix() != ts {
        t.Fatalf("unexpected unix %v", got.Unix())
    }
}

func TestAlignFromTo(t *testing.T) {
    from := time.Date(2024, 10, 10, 10, 7, 33, 0, time.UTC)
    to := time.Date(2024, 10, 10, 13, 42, 5, 0, time.UTC)

    cases := []struct {
        res      string
        wantFrom time.Time
        wantTo   time.Time
    }{
        {"1m", time.Date(2024, 10, 10, 10, 7, 0, 0, time.UTC), time.Date(2024, 10, 10, 13, 42, 0, 0, time.UTC)},
        {"5m", time.Date(2024, 10, 10, 10, 5, 0, 0, time.UTC), time.Date(2024, 10, 10, 13, 40, 0, 0, time.UTC)},
        {"15m", time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC), time.Date(2024, 10, 10, 13, 30, 0, 0, time.UTC)},
        {"60m", time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC), time.Date(2024, 10, 10, 13, 0, 0, 0, time.UTC)},
        {"4h", time.Date(2024, 10, 10, 8, 0, 0, 0, time.UTC), time.Date(2024, 10, 10, 12, 0, 0, 0, time.UTC)},
    }
    for _, c := range cases {
        gotFrom, gotTo := AlignFromTo(from, to, c.res)
        if !gotFrom.Equal(c.wantFrom) || !gotTo.Equal(c.wantTo) {
            t.Fatalf("%s: got %v..%v want %v..%v", c.res, gotFrom, gotTo, c.wantFrom, c.wantTo)
        }
    }
}

func TestParseTimeDefault(t *testing.T) {
    def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
    got := ParseTimeDefault("", def)
    if !got.Equal(def) {
        t.Fatalf("expected default")
    }
}