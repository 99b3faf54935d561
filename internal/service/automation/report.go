package automation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/dotanscherzer/projects-Dasboard/internal/domain"
	"github.com/dotanscherzer/projects-Dasboard/internal/repository"
)

//go:embed report.schema.json
var reportSchema []byte

const reportSchemaURL = "mem://automation/report.schema.json"

// ErrInvalidReport marks a payload that fails validation.
var ErrInvalidReport = fmt.Errorf("automation: invalid run report: %w", repository.ErrInvalidArgument)

// Report is a run outcome posted by the automation platform.
type Report struct {
	ScenarioID   string           `json:"scenarioId"`
	ScenarioName string           `json:"scenarioName,omitempty"`
	Status       domain.RunStatus `json:"status"`
	StartedAt    time.Time        `json:"startedAt"`
	FinishedAt   time.Time        `json:"finishedAt"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
}

// Duration is the run length; negative spans are reported as-is.
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(reportSchema))
		if err != nil {
			schemaErr = err
			return
		}
		c := jsonschema.NewCompiler()
		c.AssertFormat()
		if err := c.AddResource(reportSchemaURL, doc); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(reportSchemaURL)
	})
	return schema, schemaErr
}

type wireReport struct {
	RawScenario  any     `json:"scenarioId"`
	ScenarioName string  `json:"scenarioName"`
	Status       string  `json:"status"`
	StartedAt    string  `json:"startedAt"`
	FinishedAt   string  `json:"finishedAt"`
	ErrorMessage *string `json:"errorMessage"`
}

// DecodeReport validates payload and decodes it. A numeric scenarioId is
// converted to its decimal string form.
func DecodeReport(payload []byte) (Report, error) {
	sch, err := compiledSchema()
	if err != nil {
		return Report{}, fmt.Errorf("compile report schema: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	if err := sch.Validate(inst); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return Report{}, fmt.Errorf("%w: %s", ErrInvalidReport, strings.TrimSpace(verr.Error()))
		}
		return Report{}, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}

	var wire wireReport
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&wire); err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}

	report := Report{
		ScenarioName: wire.ScenarioName,
		Status:       domain.RunStatus(wire.Status),
	}
	switch v := wire.RawScenario.(type) {
	case string:
		report.ScenarioID = v
	case json.Number:
		report.ScenarioID = v.String()
	}
	if report.StartedAt, err = time.Parse(time.RFC3339Nano, wire.StartedAt); err != nil {
		return Report{}, fmt.Errorf("%w: startedAt: %v", ErrInvalidReport, err)
	}
	if report.FinishedAt, err = time.Parse(time.RFC3339Nano, wire.FinishedAt); err != nil {
		return Report{}, fmt.Errorf("%w: finishedAt: %v", ErrInvalidReport, err)
	}
	if wire.ErrorMessage != nil {
		report.ErrorMessage = *wire.ErrorMessage
	}
	return report, nil
}
