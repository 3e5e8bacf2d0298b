package web

import (
	"html/template"
	"net/http"
	"strconv"

	appLog "tlsched/internal/log"
	"tlsched/internal/model"
)

const (
	headerRowHeight = 24
	laneHeight      = 22
	labelWidth      = 160
)

var timelineTmpl = template.Must(template.New("timeline").Funcs(template.FuncMap{
	"px":     func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) + "px" },
	"lanePx": func(lane int) string { return strconv.Itoa(lane*laneHeight+2) + "px" },
	"rowPx": func(lanes int) string {
		if lanes < 1 {
			lanes = 1
		}
		return strconv.Itoa(lanes*laneHeight+4) + "px"
	},
}).Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>tlsched</title>
<style>
body { margin: 0; font: 12px sans-serif; }
.tl { position: relative; margin-left: ` + strconv.Itoa(labelWidth) + `px; }
.hdr { position: relative; height: ` + strconv.Itoa(headerRowHeight) + `px; border-bottom: 1px solid #999; }
.cell { position: absolute; top: 0; bottom: 0; border-left: 1px solid #ccc; overflow: hidden; white-space: nowrap; padding-left: 2px; box-sizing: border-box; }
.cell.partial { color: #777; }
.row { position: relative; border-bottom: 1px solid #eee; }
.label { position: absolute; left: -` + strconv.Itoa(labelWidth) + `px; width: ` + strconv.Itoa(labelWidth-8) + `px; overflow: hidden; white-space: nowrap; }
.ev { position: absolute; height: ` + strconv.Itoa(laneHeight-4) + `px; background: #4a7bd0; color: #fff; border-radius: 3px; overflow: hidden; white-space: nowrap; padding: 0 2px; box-sizing: border-box; }
.ev.allday { background: #8a8a8a; }
</style>
</head>
<body>
<div class="tl" id="timeline" data-ready="true" data-scale="{{.Scale}}" style="width: {{px .Width}}">
{{range .HeaderLevels}}<div class="hdr">{{range .}}<div class="cell{{if .Partial}} partial{{end}}" style="left: {{px .PixelStart}}; width: {{px .PixelWidth}}">{{.Label}}</div>{{end}}</div>
{{end}}{{range .Rows}}<div class="row" data-resource="{{.Resource.ID}}" style="height: {{rowPx .Lanes}}">
<div class="label">{{.Resource.Label}}</div>
{{range .Positioned}}<div class="ev{{if .AllDay}} allday{{end}}" title="{{.Summary}}" style="left: {{px .PixelStart}}; width: {{px .PixelWidth}}; top: {{lanePx .Lane}}">{{.Summary}}</div>
{{end}}</div>
{{end}}</div>
</body>
</html>
`))

type timelineView struct {
	Scale        string
	Width        float64
	HeaderLevels [][]model.HeaderCell
	Rows         []rowView
}

type rowView struct {
	Resource   model.Resource
	Lanes      int
	Positioned []positionedView
}

type positionedView struct {
	Summary    string
	AllDay     bool
	Lane       int
	PixelStart float64
	PixelWidth float64
}

// handleTimeline renders the current view as static HTML. It accepts the
// same query as /api/render; the root element carries data-ready="true"
// for headless capture.
func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	rm, err := s.renderQuery(r)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := timelineTmpl.Execute(w, toView(rm)); err != nil {
		appLog.Error("timeline render failed", err)
	}
}

func toView(rm *RenderModel) timelineView {
	v := timelineView{
		Scale:        rm.Scale.String(),
		Width:        rm.Width,
		HeaderLevels: rm.HeaderLevels,
		Rows:         make([]rowView, 0, len(rm.Rows)),
	}
	for _, row := range rm.Rows {
		rv := rowView{Resource: row.Resource, Lanes: row.Lanes}
		for _, p := range row.Positioned {
			summary := p.Event.Payload.Summary
			if summary == "" {
				summary = p.Event.ID
			}
			rv.Positioned = append(rv.Positioned, positionedView{
				Summary:    summary,
				AllDay:     p.Event.Payload.AllDay,
				Lane:       p.Lane,
				PixelStart: p.PixelStart,
				PixelWidth: p.PixelWidth,
			})
		}
		v.Rows = append(v.Rows, rv)
	}
	return v
}
