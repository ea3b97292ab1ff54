package commands

import (
	"errors"
	"fmt"
	"strings"

	"wolfie/internal/battle"
	"wolfie/internal/errs"
	"wolfie/internal/printer"
	"wolfie/internal/temporal"
	"wolfie/internal/titles"
)

var errTitles = map[string]string{
	errs.CodeInvalidCategory:  "Unknown category",
	errs.CodeInvalidFormat:    "Could not read that date or time",
	errs.CodeInvalidSlot:      "Unknown battle slot",
	errs.CodeInvalidClass:     "Unknown class",
	errs.CodeInvalidArgument:  "Invalid argument",
	errs.CodePastTime:         "That time has already passed",
	errs.CodeThrottled:        "Too soon after your last slot",
	errs.CodeHorizonExceeded:  "Too far ahead",
	errs.CodeSlotTaken:        "Slot already taken",
	errs.CodeNoSlot:           "No free slot found",
	errs.CodeCapacityExceeded: "Battle slot is full",
	errs.CodeNotFound:         "Nothing to remove",
	errs.CodeRateLimited:      "Slow down",
}

func suggestionsFor(code string) []string {
	switch code {
	case errs.CodeInvalidCategory:
		return []string{"Use one of: " + strings.Join(titles.CategoryNames(), ", ")}
	case errs.CodeInvalidFormat:
		return []string{"Dates: 2025-02-21, 2/21 or 21/2", "Times: 22, 22:00 or 10PM"}
	case errs.CodeInvalidSlot:
		return []string{"Days are d1 (Saturday) and d2 (Sunday); slots are t1, t2 and t3"}
	case errs.CodeInvalidClass:
		return []string{"Use one of: " + strings.Join(battle.ClassNames(), ", ")}
	case errs.CodeSlotTaken:
		return []string{"Pick another hour", "Leave out the time to take the next free slot"}
	case errs.CodeThrottled, errs.CodeHorizonExceeded:
		return []string{"Check your queued slots with `wolfie queue ls`"}
	default:
		return nil
	}
}

// report prints err and returns the error cobra should see.
func report(p *printer.Printer, err error) error {
	var e *errs.Error
	switch {
	case errors.As(err, &e) && e.Kind != errs.KindPersistence:
		title, ok := errTitles[e.Code]
		if !ok {
			title = "Request rejected"
		}
		return p.Error(title, e.Error(), suggestionsFor(e.Code))
	case errors.Is(err, temporal.ErrUnparseable), errors.Is(err, temporal.ErrNoInput):
		return p.Error(errTitles[errs.CodeInvalidFormat], err.Error(), suggestionsFor(errs.CodeInvalidFormat))
	default:
		return p.Error("Something went wrong", err.Error(), nil)
	}
}

// unsaved warns about an applied change whose write failed. The final
// commit on exit retries it.
func unsaved(p *printer.Printer, err error) {
	if err == nil {
		return
	}
	p.Warning("%s", fmt.Sprintf("change applied but not saved yet: %v", err))
}

// failed reports whether err is a real rejection rather than an applied
// change with a failed write.
func failed(err error) bool {
	return err != nil && !errs.IsKind(err, errs.KindPersistence)
}
