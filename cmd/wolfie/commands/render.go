package commands

import (
	"fmt"
	"strings"
	"time"

	"wolfie/internal/battle"
	"wolfie/internal/printer"
	"wolfie/internal/titles"
)

const stamp = "Mon Jan 2 15:04 MST"

func renderQueues(p *printer.Printer, views []titles.QueueView) {
	for i, v := range views {
		if i > 0 {
			p.Info("")
		}
		p.Heading("%s", v.Category.Title)
		if len(v.Entries) == 0 {
			p.Faint("  (empty)")
			continue
		}
		tw := p.Table()
		fmt.Fprintln(tw, "  #\tWHO\tUTC\tLOCAL\tSTATUS")
		for _, e := range v.Entries {
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\n",
				e.Index+1, e.Alias, e.Time.Format(stamp), e.Local.Format(stamp), statusMark(e.Status))
		}
		_ = tw.Flush()
	}
}

func statusMark(s titles.Status) string {
	switch s {
	case titles.StatusCurrent:
		return "▶ current"
	case titles.StatusServed:
		return "✓ served"
	default:
		return "waiting"
	}
}

func renderProgress(p *printer.Printer, pr titles.Progress) {
	for _, e := range pr.Served {
		p.Faint("  served %s (%s)", e.UserName, e.Time.Format(stamp))
	}
	if pr.Current == nil {
		p.Success("%s: queue finished (%d entries)", pr.Category.Name, pr.Length)
		return
	}
	p.Success("%s: now serving %s at %s (%d/%d)",
		pr.Category.Name, pr.Current.UserName, pr.Current.Time.Format(stamp), pr.Cursor+1, pr.Length)
}

func renderCells(p *printer.Printer, title string, cells []battle.CellView) {
	p.Heading("%s", title)
	if len(cells) == 0 {
		p.Faint("  nobody signed up yet")
		return
	}
	for _, c := range cells {
		p.Info("%s/%s  %s  (%d)", c.Day, c.Slot, c.At.Format(stamp), len(c.Members))
		if len(c.Members) == 0 {
			continue
		}
		tw := p.Table()
		for _, m := range c.Members {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", primaryMark(m.Primary), m.Alias, m.Role, localTime(m.Local, m.Timezone))
		}
		_ = tw.Flush()
	}
}

func primaryMark(primary bool) string {
	if primary {
		return "★"
	}
	return "·"
}

func localTime(t time.Time, tz string) string {
	if strings.EqualFold(tz, "UTC") || tz == "" {
		return t.Format(stamp)
	}
	return t.Format(stamp) + " (" + tz + ")"
}

func renderRegistration(p *printer.Printer, title string, r battle.Registration) {
	verb := "Signed up for"
	if r.Updated {
		verb = "Updated your sign-up for"
	}
	p.Success("%s %s %s/%s at %s", verb, title, r.Day, r.Slot, r.At.Format(stamp))
	for _, c := range r.ClearedPrimary {
		p.Faint("  primary moved from %s", c)
	}
}
