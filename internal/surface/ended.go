// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package surface

import "time"

// endDetector decides when the loaded item has finished. It fires at most
// once per loaded address, whichever of the explicit ended report or the
// time-based check comes first.
type endDetector struct {
	threshold time.Duration
	address   string
	lastTime  float64
	fired     bool
}

func (d *endDetector) reset(address string) {
	d.address = address
	d.lastTime = -1
	d.fired = false
}

// observeTime reports true when the remaining time drops below threshold
// while playback is advancing and not paused.
func (d *endDetector) observeTime(address string, current, duration float64, paused bool) bool {
	if address != "" && address != d.address {
		d.reset(address)
	}
	advancing := d.lastTime >= 0 && current > d.lastTime
	d.lastTime = current
	if d.fired || paused || !advancing || duration <= 0 {
		return false
	}
	if duration-current < d.threshold.Seconds() {
		d.fired = true
		return true
	}
	return false
}

// observeEnded handles an explicit ended report.
func (d *endDetector) observeEnded(address string) bool {
	if address != "" && address != d.address {
		d.reset(address)
	}
	if d.fired || d.address == "" {
		return false
	}
	d.fired = true
	return true
}
