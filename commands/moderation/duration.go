package moderation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kevinfinalboss/VoidMod/internal/models"
)

// errTooLong covers anything past the ~292 years a time.Duration can hold.
// Longer punishments are what "perm" is for.
var errTooLong = errors.New("duração muito longa, use \"perm\" para um banimento permanente")

var units = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// ParseUntil turns a duration such as "30m", "12h", "7d" or "1d12h" into an
// absolute expiry. "perm" and "permanente" yield models.Permanent.
func ParseUntil(input string, now time.Time) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	switch s {
	case "":
		return time.Time{}, fmt.Errorf("duração vazia")
	case "perm", "permanente", "permanent":
		return models.Permanent, nil
	}

	var total time.Duration
	for len(s) > 0 {
		i := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == 0 || i == len(s) {
			return time.Time{}, fmt.Errorf("duração inválida %q", input)
		}
		n, err := strconv.Atoi(s[:i])
		if err != nil {
			return time.Time{}, fmt.Errorf("duração inválida %q", input)
		}
		unit, ok := units[s[i]]
		if !ok {
			return time.Time{}, fmt.Errorf("unidade desconhecida %q em %q", s[i], input)
		}
		if time.Duration(n) > math.MaxInt64/unit {
			return time.Time{}, errTooLong
		}
		step := time.Duration(n) * unit
		if total > math.MaxInt64-step {
			return time.Time{}, errTooLong
		}
		total += step
		s = s[i+1:]
	}

	if total <= 0 {
		return time.Time{}, fmt.Errorf("a duração deve ser maior que zero")
	}
	return now.Add(total), nil
}
