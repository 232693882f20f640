package mappings

import "strings"

type PlotStyle struct {
	Color       string
	LineStyle   string
	LineWidth   string
	Mark        string
	MarkOptions string
}

// SetpointStyles are assigned to input-voltage series by table position.
var SetpointStyles = []PlotStyle{
	{Color: "blue", LineStyle: "solid", LineWidth: "thick", Mark: "*", MarkOptions: "scale=0.6,fill=blue"},
	{Color: "red", LineStyle: "densely dashed", LineWidth: "thick", Mark: "square*", MarkOptions: "scale=0.5,fill=red"},
	{Color: "green!60!black", LineStyle: "dashdotted", LineWidth: "thick", Mark: "triangle*", MarkOptions: "scale=0.6,fill=green!60!black"},
	{Color: "orange", LineStyle: "densely dotted", LineWidth: "thick", Mark: "diamond*", MarkOptions: "scale=0.6,fill=orange"},
	{Color: "violet", LineStyle: "solid", LineWidth: "thick", Mark: "pentagon*", MarkOptions: "scale=0.6,fill=violet"},
	{Color: "teal", LineStyle: "dashed", LineWidth: "thick", Mark: "o", MarkOptions: "scale=0.5"},
	{Color: "brown", LineStyle: "loosely dashed", LineWidth: "thick", Mark: "x", MarkOptions: "scale=0.6"},
	{Color: "black", LineStyle: "dotted", LineWidth: "thick", Mark: "star", MarkOptions: "scale=0.6"},
}

func GetSetpointStyle(index int) PlotStyle {
	if index < 0 {
		index = 0
	}
	return SetpointStyles[index%len(SetpointStyles)]
}

func (ps PlotStyle) ToTikzOptions() string {
	parts := []string{ps.Color}
	for _, opt := range []string{ps.LineStyle, ps.LineWidth} {
		if opt != "" {
			parts = append(parts, opt)
		}
	}
	if ps.Mark != "" && ps.Mark != "none" {
		parts = append(parts, "mark="+ps.Mark)
		if ps.MarkOptions != "" {
			parts = append(parts, "mark options={"+ps.MarkOptions+"}")
		}
	}
	return strings.Join(parts, ",")
}
