package usecase

import (
	"strconv"
	"strings"
)

// Roster cells arrive in this fixed order from the scraped table.
const (
	cellDisplayName = iota
	cellUsername
	cellRacesLast24h
	cellRacesThisWeek
	cellTotalRaces
	cellCashOwed
	cellPaymentStatus
	cellMinimumReqs
	cellDateText

	// minRosterCells is the smallest row that still identifies a
	// member and their race counts.
	minRosterCells = cellTotalRaces + 1
)

// RosterRow is one interpreted roster record. This is the only
// boundary where scraped text becomes typed fields; reconciliation and
// milestone logic never see raw cells.
type RosterRow struct {
	Username      string
	DisplayName   string
	RacesLast24h  int
	RacesThisWeek int
	TotalRaces    int
	CashOwed      string
	PaymentStatus string
	MinimumReqs   string
	DateText      string
}

// RosterSnapshot is the interpreted output of one roster fetch.
type RosterSnapshot struct {
	Rows        []RosterRow
	RowsSkipped int
}

// InterpretRows converts tokenized table rows into typed records.
// Rows with too few cells, or no username, are skipped and counted;
// unparsable numeric cells degrade to zero rather than failing the
// run.
func InterpretRows(raw [][]string) RosterSnapshot {
	snapshot := RosterSnapshot{Rows: make([]RosterRow, 0, len(raw))}

	for _, cells := range raw {
		if len(cells) < minRosterCells {
			snapshot.RowsSkipped++
			continue
		}

		row := RosterRow{
			Username:      rosterCell(cells, cellUsername),
			DisplayName:   rosterCell(cells, cellDisplayName),
			RacesLast24h:  rosterCount(cells, cellRacesLast24h),
			RacesThisWeek: rosterCount(cells, cellRacesThisWeek),
			TotalRaces:    rosterCount(cells, cellTotalRaces),
			CashOwed:      rosterCell(cells, cellCashOwed),
			PaymentStatus: rosterCell(cells, cellPaymentStatus),
			MinimumReqs:   rosterCell(cells, cellMinimumReqs),
			DateText:      rosterCell(cells, cellDateText),
		}
		if row.Username == "" {
			snapshot.RowsSkipped++
			continue
		}
		snapshot.Rows = append(snapshot.Rows, row)
	}

	return snapshot
}

func rosterCell(cells []string, index int) string {
	if index >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[index])
}

// rosterCount parses a race-count cell. Thousands separators are
// stripped; placeholders and garbage degrade to zero.
func rosterCount(cells []string, index int) int {
	text := rosterCell(cells, index)
	if text == "" || text == "-" {
		return 0
	}
	text = strings.ReplaceAll(text, ",", "")
	text = strings.ReplaceAll(text, " ", "")

	n, err := strconv.Atoi(text)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
