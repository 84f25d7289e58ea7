package metrics

import "errors"

// MultiSink fans records out to multiple sinks. Every sink is tried; the
// errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordResponderResults(res []ResponderResult) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordResponderResults(res))
	}
	return errors.Join(errs...)
}

// RecordRun forwards run summaries to sinks implementing RunRecorder.
func (m *MultiSink) RecordRun(ev RunSummary) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(RunRecorder); ok {
			errs = append(errs, rec.RecordRun(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordDirectorySync forwards refresh events to sinks implementing DirectoryRecorder.
func (m *MultiSink) RecordDirectorySync(ev DirectorySyncEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(DirectoryRecorder); ok {
			errs = append(errs, rec.RecordDirectorySync(ev))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds resources.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if cl, ok := s.(interface{ Close() }); ok {
			cl.Close()
		}
	}
}
