package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/derickschaefer/emdash/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report wire names (station_id) rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// QueryError is returned when a query is rejected before any request is made.
type QueryError struct {
	Endpoint string
	Problems []string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid %s query: %s", e.Endpoint, strings.Join(e.Problems, "; "))
}

// ValidateHourly checks an hourly query without touching the network.
func ValidateHourly(q model.HourlyQuery) error {
	q.StationID = strings.TrimSpace(q.StationID)
	return check("hourly", q, q.Start.IsZero() || q.End.IsZero() || !q.End.Before(q.Start))
}

// ValidateFilter checks an observation filter without touching the network.
func ValidateFilter(f model.ObservationFilter) error {
	return check("observations", f, f.Start.IsZero() || f.End.IsZero() || !f.End.Before(f.Start))
}

func check(endpoint string, q interface{}, rangeOK bool) error {
	var problems []string
	if err := validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validating %s query: %w", endpoint, err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}
	if !rangeOK {
		problems = append(problems, "end is before start")
	}
	if len(problems) > 0 {
		return &QueryError{Endpoint: endpoint, Problems: problems}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), model.ParameterList())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
