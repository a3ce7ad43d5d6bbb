package report

import (
	"fmt"
	"path/filepath"

	"github.com/ibeckermayer/shotgrid/internal/types"
)

// Page is the template data for one rendered report
type Page struct {
	Title           string
	TemplateVersion int
	GeneratedAt     string
	Latest          *RunView
	Archived        []RunView
	// History is the full merged history, embedded verbatim as data
	History types.History
}

// RunView is one run laid out as a URL × (browser, device) grid
type RunView struct {
	Index     int // position in Page.History
	ID        string
	ShortID   string
	Timestamp string
	Total     int
	Failed    int
	Columns   []Column
	Rows      []Row
}

// Column is one (browser, device) pair
type Column struct {
	Browser types.Browser
	Device  types.DeviceProfile
}

// Label returns the column header text
func (c Column) Label() string {
	return fmt.Sprintf("%s / %s", c.Browser, c.Device.Name)
}

type Row struct {
	URL   string
	Cells []Cell
}

// Cell is the outcome for one grid position. Cells with Present unset are
// rendered as N/A.
type Cell struct {
	Present    bool
	Outcome    int // index into the run's outcomes
	Status     types.Status
	Error      string
	Image      string // artifact path relative to the report
	DurationMS int64
}

func (c Cell) Succeeded() bool {
	return c.Status == types.StatusSuccess
}

type cellKey struct {
	url     string
	browser types.Browser
	device  string
}

// NewPage lays out every run in history. Artifact links are made relative to
// outputDir so the report can be opened straight from disk.
func NewPage(title string, history types.History, outputDir string, generatedAt string) Page {
	p := Page{
		Title:           title,
		TemplateVersion: TemplateVersion,
		GeneratedAt:     generatedAt,
		History:         history,
	}
	if p.History == nil {
		p.History = types.History{}
	}

	for i, run := range history {
		v := newRunView(i, run, outputDir)
		if i == 0 {
			p.Latest = &v
			continue
		}
		p.Archived = append(p.Archived, v)
	}
	return p
}

func newRunView(index int, run types.RunRecord, outputDir string) RunView {
	v := RunView{
		Index:     index,
		ID:        run.ID,
		ShortID:   shortID(run.ID),
		Timestamp: run.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"),
		Total:     len(run.Outcomes),
		Failed:    run.Failed(),
	}

	// Columns and rows follow first appearance so the grid mirrors matrix order
	colIndex := make(map[string]int)
	rowIndex := make(map[string]int)
	var urls []string
	for _, o := range run.Outcomes {
		col := Column{Browser: o.Browser, Device: o.Device}
		if _, ok := colIndex[col.Label()]; !ok {
			colIndex[col.Label()] = len(v.Columns)
			v.Columns = append(v.Columns, col)
		}
		if _, ok := rowIndex[o.URL]; !ok {
			rowIndex[o.URL] = len(urls)
			urls = append(urls, o.URL)
		}
	}

	cells := make(map[cellKey]Cell, len(run.Outcomes))
	for i, o := range run.Outcomes {
		key := cellKey{url: o.URL, browser: o.Browser, device: o.Device.Name}
		if _, dup := cells[key]; dup {
			continue
		}
		c := Cell{
			Present:    true,
			Outcome:    i,
			Status:     o.Status,
			Error:      o.Error,
			DurationMS: o.DurationMS,
		}
		if o.Succeeded() && o.ArtifactPath != "" {
			c.Image = relativeTo(outputDir, o.ArtifactPath)
		}
		cells[key] = c
	}

	for _, url := range urls {
		row := Row{URL: url, Cells: make([]Cell, len(v.Columns))}
		for ci, col := range v.Columns {
			row.Cells[ci] = cells[cellKey{url: url, browser: col.Browser, device: col.Device.Name}]
		}
		v.Rows = append(v.Rows, row)
	}
	return v
}

func relativeTo(dir, path string) string {
	if dir == "" {
		return filepath.ToSlash(path)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
