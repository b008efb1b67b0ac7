package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var unitSeconds = map[string]int{
	"s": 1,
	"m": 60,
	"h": 60 * 60,
	"d": 24 * 60 * 60,
}

// <count>[/[<multiplicador>][<unidade>]]
var rateRe = regexp.MustCompile(`(?i)^(\d+)(?:/(\d*)([smhd])?)?$`)

// RateSpec é a cota configurada: Capacity tokens regenerados a cada Window.
type RateSpec struct {
	Capacity int
	Window   time.Duration
}

// NewRateSpec valida uma cota já estruturada e a devolve sem alteração.
func NewRateSpec(capacity int, window time.Duration) (RateSpec, error) {
	spec := RateSpec{Capacity: capacity, Window: window}
	if err := spec.Validate(); err != nil {
		return RateSpec{}, err
	}
	return spec, nil
}

// ParseRate interpreta expressões como "1/s", "100/10m", "3/h" ou "7" (unidade padrão: segundos).
func ParseRate(s string) (RateSpec, error) {
	m := rateRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return RateSpec{}, fmt.Errorf("%w: %q does not match <count>/<multiplier><unit>", ErrInvalidRateSpec, s)
	}

	count, err := strconv.Atoi(m[1])
	if err != nil {
		return RateSpec{}, fmt.Errorf("%w: count %q: %v", ErrInvalidRateSpec, m[1], err)
	}

	multi := 1
	if m[2] != "" {
		multi, err = strconv.Atoi(m[2])
		if err != nil {
			return RateSpec{}, fmt.Errorf("%w: multiplier %q: %v", ErrInvalidRateSpec, m[2], err)
		}
	}

	unit := strings.ToLower(m[3])
	if unit == "" {
		unit = "s"
	}

	// janela precisa caber em time.Duration
	if int64(multi) > math.MaxInt64/int64(time.Second)/int64(unitSeconds[unit]) {
		return RateSpec{}, fmt.Errorf("%w: window %s%s is too large", ErrInvalidRateSpec, m[2], unit)
	}

	return NewRateSpec(count, time.Duration(multi*unitSeconds[unit])*time.Second)
}

func (r RateSpec) Validate() error {
	if r.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be > 0, got %d", ErrInvalidRateSpec, r.Capacity)
	}
	if r.Window <= 0 {
		return fmt.Errorf("%w: window must be > 0, got %s", ErrInvalidRateSpec, r.Window)
	}
	return nil
}

// WindowSeconds devolve a janela em segundos (float), unidade usada na aritmética do bucket.
func (r RateSpec) WindowSeconds() float64 { return r.Window.Seconds() }

func (r RateSpec) String() string {
	return strconv.Itoa(r.Capacity) + "/" + r.Window.String()
}
