package mutation

import (
	"fmt"
	"strings"
)

// Strategy selects how a successful mutation refreshes cached reads.
//
// Strategy 决定成功的变更如何刷新缓存的读取结果。
type Strategy int

const (
	// Precise invalidates exactly the prefixes the mutation affects.
	// Precise 只使变更影响到的前缀失效。
	Precise Strategy = iota

	// Blunt refreshes every cached read.
	// Blunt 刷新所有缓存的读取结果。
	Blunt
)

// String returns the configuration name of the strategy.
func (s Strategy) String() string {
	switch s {
	case Precise:
		return "precise"
	case Blunt:
		return "blunt"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStrategy parses "precise" or "blunt", ignoring case.
//
// ParseStrategy 解析"precise"或"blunt"，忽略大小写。
//
// Parameters:
//   - s: Strategy name
//
// Returns:
//   - Strategy: The parsed strategy
//   - error: Error if the name is unknown
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "precise":
		return Precise, nil
	case "blunt":
		return Blunt, nil
	}
	return Precise, fmt.Errorf("mutation: unknown strategy %q", s)
}
