package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimatePowerKW(t *testing.T) {
	// 24 A on a 240 V split-phase circuit
	assert.Equal(t, 5.76, EstimatePowerKW(24, 240))
	// zero amps means zero power, not unknown
	assert.Equal(t, 0.0, EstimatePowerKW(0, 240))
	assert.Equal(t, 9.6, EstimatePowerKW(40, 240))
	// alternative voltage assumption
	assert.Equal(t, 2.88, EstimatePowerKW(24, 120))
}

func TestEstimatePowerKWRounding(t *testing.T) {
	// 13.33 A * 240 V = 3199.2 W
	assert.Equal(t, 3.199, EstimatePowerKW(13.33, 240))
	assert.Equal(t, 0.072, EstimatePowerKW(0.3, 240))
}

func TestEstimatePowerKWMonotonic(t *testing.T) {
	prev := EstimatePowerKW(0, 240)
	for amps := 1.0; amps <= 48; amps++ {
		kw := EstimatePowerKW(amps, 240)
		assert.Greater(t, kw, prev)
		prev = kw
	}
}
