package config

import (
    "os"
    "strconv"
    "time"
)

// Typed environment lookups. Each returns d when the variable is unset or
// cannot be parsed.

func envStr(k, d string) string { if v := os.Getenv(k); v != "" { return v }; return d }

func envInt(k string, d int) int {
    v := os.Getenv(k); if v == "" { return d }
    if n, err := strconv.Atoi(v); err == nil { return n }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k); if v == "" { return d }
    if dur, err := time.ParseDuration(v); err == nil { return dur }
    return d
}
