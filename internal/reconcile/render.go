package reconcile

import (
	"github.com/aidanlsb/dailysync/internal/taskline"
)

// renderDaily renders a source task as a daily block at the given depth.
// The daily copy keeps its own time when the source has none.
func renderDaily(l taskline.Layout, sd *SourceTask, depth int, quoted bool, fallbackTime string) []string {
	tm := sd.Time
	if tm == "" {
		tm = fallbackTime
	}
	head := l.FormatDaily(taskline.DailyLine{
		Depth:    depth,
		Quoted:   quoted,
		Status:   sd.Status,
		Time:     tm,
		Text:     sd.Text,
		FileStem: sd.Stem,
		BlockID:  sd.ID,
		Tag:      true,
	})
	return append([]string{head}, l.ReindentChildren(sd.Children(), depth, sd.Depth, quoted)...)
}

// renderSource renders a daily task as a source block dated date in the file
// named stem. A link back to that file is dropped from the text.
func renderSource(l taskline.Layout, dd *DailyTask, stem, date string, depth int, doneDate, fallbackTime string) []string {
	tm := dd.Time
	if tm == "" {
		tm = fallbackTime
	}
	head := l.FormatSource(taskline.SourceLine{
		Depth:    depth,
		Status:   dd.Status,
		Time:     tm,
		Text:     taskline.CleanText(dd.Text, "", stem),
		Date:     date,
		DoneDate: doneDate,
		BlockID:  dd.ID,
	})
	return append([]string{head}, l.ReindentChildren(dd.Children(), depth, dd.Depth, false)...)
}
