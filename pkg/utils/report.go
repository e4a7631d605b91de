package utils

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ReportHeader is the first line of every report.
const ReportHeader = "Domain,IP,API Status,Country,Country Code,Region,Region Name,City,Zip,Lat,Lon,Timezone,ISP,Org,AS,api_query"

// Reporter turns HostRecords into CSV report lines.
type Reporter struct {
	Locator Locator
	Log     logrus.FieldLogger
}

// ReportSummary counts the outcome of one Report call.
type ReportSummary struct {
	Written int
	Failed  int
}

// FormatRecord returns the report line for rec, without a trailing newline.
func (r *Reporter) FormatRecord(ctx context.Context, rec HostRecord) (string, error) {
	geo, err := r.Locator.Locate(ctx, rec.IP)
	if err != nil {
		return "", err
	}
	return rec.Name + "," + rec.IP + "," + geo, nil
}

// Report writes the header followed by one line per record, flushing w after
// each line. A record that cannot be located or written is logged and skipped.
// Only a failed header write or a cancelled context stops the report.
func (r *Reporter) Report(ctx context.Context, w io.Writer, records []HostRecord) (ReportSummary, error) {
	var sum ReportSummary
	if err := writeLine(w, ReportHeader); err != nil {
		return sum, errors.Wrap(err, "write header")
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		line, err := r.FormatRecord(ctx, rec)
		if err == nil {
			err = writeLine(w, line)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return sum, ctxErr
			}
			sum.Failed++
			r.Log.Errorf("Error printing record for %s (%s): %v", rec.Name, rec.IP, err)
			continue
		}
		sum.Written++
	}
	return sum, nil
}

func writeLine(w io.Writer, line string) error {
	if _, err := io.WriteString(w, line+"\n"); err != nil {
		return err
	}
	switch f := w.(type) {
	case interface{ Flush() error }:
		return f.Flush()
	case http.Flusher:
		f.Flush()
	}
	return nil
}
