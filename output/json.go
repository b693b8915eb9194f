package output

import (
	"encoding/json"

	"migrant/autodetect"
	"migrant/operations"
)

type jsonFormatter struct{}

type jsonPlan struct {
	Operations []jsonPlanOp `json:"operations"`
	Warnings   []string     `json:"warnings,omitempty"`
}

type jsonPlanOp struct {
	Namespace string          `json:"namespace"`
	Operation json.RawMessage `json:"operation"`
}

func (jsonFormatter) FormatPlan(plan *autodetect.Plan) (string, error) {
	doc := jsonPlan{Operations: []jsonPlanOp{}}
	if plan != nil {
		for _, p := range plan.Operations {
			raw, err := operations.Marshal(p.Op)
			if err != nil {
				return "", err
			}
			doc.Operations = append(doc.Operations, jsonPlanOp{
				Namespace: p.Namespace,
				Operation: raw,
			})
		}
		doc.Warnings = plan.Warnings
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

func (jsonFormatter) FormatSQL(stmts []string) (string, error) {
	stmts = normalizeStatements(stmts)
	if stmts == nil {
		stmts = []string{}
	}
	data, err := json.MarshalIndent(map[string][]string{"statements": stmts}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}
