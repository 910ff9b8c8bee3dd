package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/raidmgr"
)

// Exact layouts tried before falling back to natural language parsing.
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"02.01.2006 15:04",
}

// ParseDatetime turns user input into a UTC raid start time. It accepts a
// few exact layouts and natural language ("tomorrow at 8pm", "wednesday
// 20:00") relative to now.
func ParseDatetime(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, raidmgr.ErrInvalidDatetime
	}

	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, input); err == nil {
			return t.UTC(), nil
		}
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(input, now)
	if err != nil || r == nil {
		return time.Time{}, fmt.Errorf("%w: %q", raidmgr.ErrInvalidDatetime, input)
	}
	return r.Time.UTC(), nil
}
