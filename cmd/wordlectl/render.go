package main

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	"wordlechain/internal/board"
	"wordlechain/internal/types"
)

var statusStyles = map[types.LetterStatus]*pterm.Style{
	types.StatusExact:   pterm.NewStyle(pterm.BgGreen, pterm.FgBlack, pterm.Bold),
	types.StatusPartial: pterm.NewStyle(pterm.BgYellow, pterm.FgBlack, pterm.Bold),
	types.StatusAbsent:  pterm.NewStyle(pterm.BgDarkGray, pterm.FgWhite, pterm.Bold),
}

var plainStyle = pterm.NewStyle(pterm.FgWhite, pterm.Bold)

// printer is the controllers' notifier for the terminal: toasts are printed
// as they are raised.
type printer struct{}

func (printer) Notify(level types.Level, message string) {
	switch level {
	case types.LevelSuccess:
		pterm.Success.Println(message)
	case types.LevelError:
		pterm.Error.Println(message)
	default:
		pterm.Info.Println(message)
	}
}

func (printer) Refresh() {}

func renderCell(c board.Cell) string {
	letter := c.Letter
	if letter == "" {
		letter = "·"
	}
	style := plainStyle
	if c.Scored {
		if s, ok := statusStyles[c.Status]; ok {
			style = s
		}
	}
	return style.Sprint(" " + letter + " ")
}

// renderBoard draws one line per row.
func renderBoard(rows []board.Row) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, 0, len(row.Cells))
		for _, c := range row.Cells {
			cells = append(cells, renderCell(c))
		}
		lines = append(lines, strings.Join(cells, " "))
	}
	return strings.Join(lines, "\n")
}

func renderKeyboard(keys []board.Key) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		style := plainStyle
		for st, color := range board.StatusColors {
			if k.Color != "" && k.Color == color {
				style = statusStyles[st]
			}
		}
		parts = append(parts, style.Sprint(k.Letter))
	}
	return strings.Join(parts, " ")
}

func triesLine(used int, correct bool) string {
	line := fmt.Sprintf("Guesses used: %d/%d", used, board.MaxGuesses)
	if correct {
		line += " · solved!"
	}
	return line
}

func accountTable(player string, tokens types.TokenSnapshot, decimals int, admin, readOnly bool) (string, error) {
	yesNo := map[bool]string{true: "yes", false: "no"}
	return pterm.DefaultTable.WithData(pterm.TableData{
		{"Player", player},
		{"Allowance", types.FormatUnits(tokens.Allowance, decimals) + " WLD"},
		{"Balance", types.FormatUnits(tokens.Balance, decimals) + " WLD"},
		{"Admin", yesNo[admin]},
		{"Read only", yesNo[readOnly]},
	}).Srender()
}
