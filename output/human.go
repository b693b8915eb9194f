package output

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"migrant/autodetect"
)

type humanFormatter struct{}

var (
	addColor    = color.New(color.FgGreen)
	dropColor   = color.New(color.FgRed)
	changeColor = color.New(color.FgYellow)
	warnColor   = color.New(color.FgYellow, color.Bold)
)

func (humanFormatter) FormatPlan(plan *autodetect.Plan) (string, error) {
	if plan == nil || plan.IsEmpty() {
		return "No changes detected.\n", nil
	}

	var sb strings.Builder
	for _, p := range plan.Operations {
		desc := p.Op.Describe()
		line := fmt.Sprintf("  %s %s", marker(desc), desc)
		sb.WriteString(colorFor(desc).Sprintf("%s", line))
		sb.WriteString(fmt.Sprintf("  [%s]\n", p.Namespace))
	}
	for _, w := range plan.Warnings {
		sb.WriteString(warnColor.Sprintf("  ! %s", w))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func (humanFormatter) FormatSQL(stmts []string) (string, error) {
	stmts = normalizeStatements(stmts)
	if len(stmts) == 0 {
		return "-- no statements\n", nil
	}
	return strings.Join(stmts, "\n") + "\n", nil
}

func marker(desc string) string {
	switch {
	case strings.HasPrefix(desc, "CreateModel"), strings.HasPrefix(desc, "AddField"):
		return "+"
	case strings.HasPrefix(desc, "DeleteModel"), strings.HasPrefix(desc, "RemoveField"):
		return "-"
	default:
		return "~"
	}
}

func colorFor(desc string) *color.Color {
	switch marker(desc) {
	case "+":
		return addColor
	case "-":
		return dropColor
	default:
		return changeColor
	}
}
