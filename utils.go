package powermeter

import (
	"encoding/binary"
	"io"
	"math"
)

// writeBinary writes multiple values to a writer using binary.LittleEndian
func writeBinary(w io.Writer, values ...interface{}) error {
	for _, v := range values {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

// readBinary reads multiple values from a reader using binary.LittleEndian
func readBinary(r io.Reader, values ...interface{}) error {
	for _, v := range values {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

// SampleStats holds basic statistics for one packet's sample array.
type SampleStats struct {
	Mean float64
	Min  uint16
	Max  uint16
	Std  float64
}

// CalculateStats computes mean, min, max and standard deviation of a raw ADC
// sample array.
func CalculateStats(samples []uint16) SampleStats {
	if len(samples) == 0 {
		return SampleStats{}
	}

	var sum float64
	stats := SampleStats{Min: samples[0], Max: samples[0]}
	for _, s := range samples {
		sum += float64(s)
		if s < stats.Min {
			stats.Min = s
		}
		if s > stats.Max {
			stats.Max = s
		}
	}
	stats.Mean = sum / float64(len(samples))

	var variance float64
	for _, s := range samples {
		d := float64(s) - stats.Mean
		variance += d * d
	}
	stats.Std = math.Sqrt(variance / float64(len(samples)))

	return stats
}
