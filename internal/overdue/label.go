package overdue

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	keyHard   = "%d days overdue"
	keySoft   = "%d days past soft deadline"
	keyDueIn  = "due in %d days"
	keyToday  = "due today"
	keyNoDue  = "no due date"
	keyBadDue = "unreadable due date"
)

var printer = newPrinter()

func newPrinter() *message.Printer {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	set := func(key string, msg catalog.Message) {
		if err := b.Set(language.English, key, msg); err != nil {
			panic(err)
		}
	}
	set(keyHard, plural.Selectf(1, "%d", "=1", "1 day overdue", "other", "%d days overdue"))
	set(keySoft, plural.Selectf(1, "%d", "=1", "1 day past soft deadline", "other", "%d days past soft deadline"))
	set(keyDueIn, plural.Selectf(1, "%d", "=1", "due in 1 day", "other", "due in %d days"))
	set(keyToday, catalog.String(keyToday))
	set(keyNoDue, catalog.String(keyNoDue))
	set(keyBadDue, catalog.String(keyBadDue))
	return message.NewPrinter(language.English, message.Catalog(b))
}

// Label renders a short English description such as "3 days overdue".
func Label(r Result) string {
	switch {
	case r.Flag == FlagUnparseableDue:
		return printer.Sprintf(keyBadDue)
	case r.Flag == FlagMissingDue:
		return printer.Sprintf(keyNoDue)
	}

	switch r.Status {
	case StatusHardOverdue:
		return printer.Sprintf(keyHard, r.Days)
	case StatusSoftOverdue:
		return printer.Sprintf(keySoft, r.Days)
	}
	if r.Days == 0 {
		return printer.Sprintf(keyToday)
	}
	return printer.Sprintf(keyDueIn, r.Days)
}

// Title returns the status as display text, e.g. "Soft Overdue".
func (s Status) Title() string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(s), "_", " "))
}
