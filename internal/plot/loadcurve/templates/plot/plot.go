package templates

const PlotTemplate = `% Generated on {{.GeneratedDate}}
%
% Station: {{.Station}}
% Run ID: {{.RunID}}
% Source: {{.Source}}
% Input voltages: {{len .Plots}}
%
\begin{tikzpicture}
	\begin{axis}[
		title={ {{.Title}} },
		xlabel={ {{.XLabel}} },
		ylabel={ {{.YLabel}} },
		width=\textwidth,
		height=0.7\textwidth,
		xmin={{.XMin}}, xmax={{.XMax}},
		ymin={{.YMin}}, ymax={{.YMax}},
		xmajorgrids,
		ymajorgrids,
		grid style=dashed,
		legend pos={{.LegendPos}},
	]

{{range .Plots}}
% Table {{.Index}}: setpoint {{.Setpoint}} V
\addplot+[{{.Style}}]
  coordinates {
{{range .Coordinates}}    {{.}}
{{end}}  };
\addlegendentry{ {{.LegendEntry}} }

{{end}}
	\end{axis}
\end{tikzpicture}
`

type PlotData struct {
	GeneratedDate string
	Station       string
	RunID         string
	Source        string
	Title         string
	XLabel        string
	YLabel        string
	XMin          string
	XMax          string
	YMin          string
	YMax          string
	LegendPos     string
	Plots         []PlotSeries
}

type PlotSeries struct {
	Index       int
	Setpoint    string
	Style       string
	LegendEntry string
	Coordinates []string
}
