package powermeter

// MetricsRecorder is an interface for tracking receiver and transmitter
// activity.
// RecordFrame tracks the size of an accepted or transmitted frame.
// RecordFrameError tracks the type of frame rejection encountered.
// RecordSequenceGap tracks dropped packets detected between sequence numbers.
// RecordBytesRead logs the number of stream bytes consumed.
// RecordWindowEmitted counts analysis windows handed downstream.
// RecordWindowDiscarded counts windows dropped because the consumer lagged.
type MetricsRecorder interface {
	RecordFrame(size int)
	RecordFrameError(errorType string)
	RecordSequenceGap(dropped int)
	RecordBytesRead(n int)
	RecordWindowEmitted()
	RecordWindowDiscarded()
}
