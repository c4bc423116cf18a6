package service

import "math"

// DefaultAssumedVoltage is the split-phase circuit voltage used when no
// measured voltage is available. EV chargers in this ecosystem run on
// 240 V circuits.
const DefaultAssumedVoltage float64 = 240

// EstimatePowerKW derives charging power from the reported amperage.
// Result is rounded to 3 decimals. 24 A at 240 V -> 5.76 kW.
func EstimatePowerKW(amps float64, volts float64) float64 {
	kw := amps * volts / 1000
	return math.Round(kw*1000) / 1000
}
