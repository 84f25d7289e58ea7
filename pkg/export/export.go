// Package export writes request log records in interchange formats.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/vendpoint/core/requestlog"
)

var csvHeader = []string{
	"timestamp", "correlation_id", "key_hint", "uid", "responder",
	"success", "reason", "error", "latency_ms",
}

// WriteJSON writes the records as one JSON array.
func WriteJSON(w io.Writer, recs []requestlog.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

// WriteCSV writes one row per record. Completions and prompts are left out.
func WriteCSV(w io.Writer, recs []requestlog.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			r.CorrelationID,
			r.KeyHint,
			strconv.Itoa(r.UID),
			r.Responder,
			strconv.FormatBool(r.Success),
			r.Reason,
			r.Error,
			strconv.FormatInt(r.LatencyMS, 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write dispatches on format, "json" or "csv".
func Write(w io.Writer, format string, recs []requestlog.Record) error {
	switch format {
	case "", "json":
		return WriteJSON(w, recs)
	case "csv":
		return WriteCSV(w, recs)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}
