package scenario

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ormasoftchile/axtest/pkg/action"
	"github.com/ormasoftchile/axtest/pkg/oracle"
)

// ValidationError is a single validation finding with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// HasErrors reports whether any finding has error severity.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}

// ValidateFile performs the full 3-phase validation pipeline on a scenario
// file.
// Phase 1: Structural (strict YAML decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (custom Go rules)
func ValidateFile(path string) (*Scenario, []*ValidationError) {
	var allErrors []*ValidationError

	sc, err := LoadFile(path)
	if err != nil {
		allErrors = append(allErrors, &ValidationError{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		})
		return nil, allErrors
	}

	allErrors = append(allErrors, validateSemantic(sc)...)
	allErrors = append(allErrors, ValidateDomain(sc)...)

	if len(allErrors) > 0 {
		return sc, allErrors
	}
	return sc, nil
}

// validateSemantic validates the scenario against the generated JSON Schema.
func validateSemantic(sc *Scenario) []*ValidationError {
	data, err := json.Marshal(sc)
	if err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf("marshal for schema validation: %v", err),
			Severity: "error",
		}}
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf("generate schema: %v", err),
			Severity: "error",
		}}
	}

	var schemaDoc interface{}
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf("unmarshal schema: %v", err),
			Severity: "error",
		}}
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("scenario-v1.json", schemaDoc); err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf("add schema resource: %v", err),
			Severity: "error",
		}}
	}
	sch, err := c.Compile("scenario-v1.json")
	if err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf("compile schema: %v", err),
			Severity: "error",
		}}
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf("unmarshal document: %v", err),
			Severity: "error",
		}}
	}

	if err := sch.Validate(doc); err != nil {
		var errs []*ValidationError
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidationErrors(ve) {
				errs = append(errs, &ValidationError{
					Phase:    "semantic",
					Path:     strings.Join(cause.InstanceLocation, "/"),
					Message:  fmt.Sprintf("%v", cause.ErrorKind),
					Severity: "error",
				})
			}
		} else {
			errs = append(errs, &ValidationError{
				Phase:    "semantic",
				Message:  err.Error(),
				Severity: "error",
			})
		}
		return errs
	}
	return nil
}

func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// ValidateDomain performs Phase 3 domain-level validation.
func ValidateDomain(sc *Scenario) []*ValidationError {
	var errs []*ValidationError

	if sc.APIVersion != APIVersion {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "apiVersion",
			Message:  fmt.Sprintf("unrecognized apiVersion %q, expected %q", sc.APIVersion, APIVersion),
			Severity: "error",
		})
	}

	if sc.Meta.Name == "" {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "meta.name",
			Message:  "scenario requires meta.name",
			Severity: "error",
		})
	}

	if sc.Target.PID == 0 && sc.Target.Process == "" && sc.Target.Exe == "" && sc.Target.TitleRe == "" {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "target",
			Message:  "target requires one of pid, process, exe, title_re",
			Severity: "error",
		})
	}
	if sc.Target.TitleRe != "" {
		if _, err := regexp.Compile(sc.Target.TitleRe); err != nil {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     "target.title_re",
				Message:  fmt.Sprintf("invalid regex: %v", err),
				Severity: "error",
			})
		}
	}

	if len(sc.Steps) == 0 {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "steps",
			Message:  "scenario must contain at least one step",
			Severity: "error",
		})
	}

	seen := make(map[string]int)
	for i, s := range sc.Steps {
		path := fmt.Sprintf("steps[%d]", i)

		if s.ID == "" {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     path + ".id",
				Message:  "step requires an id",
				Severity: "error",
			})
		} else if prev, ok := seen[s.ID]; ok {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     path + ".id",
				Message:  fmt.Sprintf("duplicate step ID %q (first at steps[%d])", s.ID, prev),
				Severity: "error",
			})
		}
		seen[s.ID] = i

		if err := action.Validate(s.Action); err != nil {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     path + ".action",
				Message:  err.Error(),
				Severity: "error",
			})
		}

		for j, a := range s.Expect {
			apath := fmt.Sprintf("%s.expect[%d]", path, j)
			if a.Selector.IsZero() {
				errs = append(errs, &ValidationError{
					Phase:    "domain",
					Path:     apath + ".selector",
					Message:  "assertion requires a selector",
					Severity: "error",
				})
			}
			if n := countAssertionFields(a); n != 1 {
				errs = append(errs, &ValidationError{
					Phase:    "domain",
					Path:     apath,
					Message:  fmt.Sprintf("exactly one assertion predicate must be set, got %d", n),
					Severity: "error",
				})
			}
			if a.Matches != "" {
				if _, err := regexp.Compile(a.Matches); err != nil {
					errs = append(errs, &ValidationError{
						Phase:    "domain",
						Path:     apath + ".matches",
						Message:  fmt.Sprintf("invalid regex in 'matches' assertion: %v", err),
						Severity: "error",
					})
				}
			}
		}

		for j, sel := range s.MustExist {
			if sel.IsZero() {
				errs = append(errs, &ValidationError{
					Phase:    "domain",
					Path:     fmt.Sprintf("%s.must_exist[%d]", path, j),
					Message:  "empty selector",
					Severity: "error",
				})
			}
		}
	}

	return errs
}

// countAssertionFields returns the number of assertion predicates set.
func countAssertionFields(a oracle.Assertion) int {
	count := 0
	if a.Exists != nil {
		count++
	}
	if a.TextEquals != "" {
		count++
	}
	if a.TextContains != "" {
		count++
	}
	if a.Enabled != nil {
		count++
	}
	if a.Selected != nil {
		count++
	}
	if a.ValueEquals != "" {
		count++
	}
	if a.Matches != "" {
		count++
	}
	if a.CountGreaterEqual != nil {
		count++
	}
	return count
}
