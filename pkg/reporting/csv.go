package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/internal/strategy"
)

var journalHeader = []string{
	"Timestamp",
	"Market",
	"Spot",
	"Strike",
	"Expiry_Years",
	"Volatility",
	"Vol_Source",
	"Fair_Value",
	"YES_Price",
	"NO_Price",
	"YES_Edge",
	"NO_Edge",
	"Action",
	"Side",
	"Kelly",
	"Amount_$",
	"Reason",
}

// DecisionJournal appends every decision to a CSV file
type DecisionJournal struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

// OpenDecisionJournal opens path for appending, writing the header when the
// file is new or empty
func OpenDecisionJournal(path string) (*DecisionJournal, error) {
	if err := NewDefaultPathManager().EnsureDirectoryExists(path); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	j := &DecisionJournal{file: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := j.w.Write(journalHeader); err != nil {
			f.Close()
			return nil, err
		}
		j.w.Flush()
	}
	return j, nil
}

// Record appends one decision and flushes it to disk
func (j *DecisionJournal) Record(d *strategy.Decision) error {
	row := []string{
		d.Timestamp.UTC().Format(time.RFC3339),
		d.MarketID,
		fmt.Sprintf("%.2f", d.Spot),
		fmt.Sprintf("%.2f", d.Strike),
		fmt.Sprintf("%.8f", d.TimeToExpiry),
		fmt.Sprintf("%.6f", d.Volatility),
		string(d.VolatilitySource),
		fmt.Sprintf("%.6f", d.FairValue()),
		fmt.Sprintf("%.4f", d.YesPrice),
		fmt.Sprintf("%.4f", d.NoPrice),
		fmt.Sprintf("%.6f", d.YesEdge),
		fmt.Sprintf("%.6f", d.NoEdge),
		d.Action.String(),
		string(d.Side),
		fmt.Sprintf("%.6f", d.KellyFraction),
		d.Amount.StringFixed(2),
		d.Reason,
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.w.Write(row); err != nil {
		return err
	}
	j.w.Flush()
	return j.w.Error()
}

// Close flushes and closes the file
func (j *DecisionJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.w.Flush()
	if err := j.w.Error(); err != nil {
		j.file.Close()
		return err
	}
	return j.file.Close()
}
