package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"optionlab/types"
)

// WriteTradesCSVFile writes trades to a CSV file at the given path.
func WriteTradesCSVFile(path string, trades []types.BacktestedTrade) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trades file: %w", err)
	}
	defer f.Close()

	if err := WriteTradesCSV(f, trades); err != nil {
		return err
	}
	return f.Close()
}

// WriteTradesCSV writes one row per trade to any io.Writer.
func WriteTradesCSV(w io.Writer, trades []types.BacktestedTrade) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"trade_id",
		"entry_date",
		"exit_date",
		"exit_reason",
		"legs", // kind:action:qty@strike/expiry, space separated
		"quantity",
		"entry_value",
		"exit_value",
		"gross_pnl",
		"commission",
		"pnl",
		"pnl_pct",
		"holding_days",
		"entry_delta",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, t := range trades {
		if err := writeTradeRow(cw, i, t); err != nil {
			return err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func writeTradeRow(cw *csv.Writer, id int, t types.BacktestedTrade) error {
	record := []string{
		strconv.Itoa(id),
		t.EntryDate.Format(time.DateOnly),
		t.ExitDate.Format(time.DateOnly),
		string(t.ExitReason),
		describeLegs(t.Legs),
		strconv.FormatInt(t.Quantity, 10),
		t.EntryValue.String(),
		t.ExitValue.String(),
		t.GrossPnL.String(),
		t.Commission.String(),
		t.PnL.String(),
		t.PnLPct.StringFixed(4),
		strconv.Itoa(t.HoldingDays),
		strconv.FormatFloat(t.EntryGreeks.Delta, 'f', 4, 64),
	}
	if err := cw.Write(record); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func describeLegs(legs []types.Leg) string {
	parts := make([]string, 0, len(legs))
	for _, l := range legs {
		s := fmt.Sprintf("%s:%s:%d", l.Kind, l.Action, l.Quantity)
		if l.Contract != nil {
			s += fmt.Sprintf("@%s/%s", l.Contract.Strike, l.Contract.Expiry.Format(time.DateOnly))
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}
