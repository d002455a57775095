package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/sentinel-governance/sentinel/internal/model"
)

// predicateDoc is the raw YAML shape of a predicate: a kind tag plus
// whatever params that kind expects. It is decoded into a concrete
// Predicate implementation by buildPredicate.
type predicateDoc struct {
	Kind Kind `yaml:"kind"`

	Key     string   `yaml:"key,omitempty"`
	Value   string   `yaml:"value,omitempty"`
	Actions []string `yaml:"actions,omitempty"`
	Types   []string `yaml:"types,omitempty"`

	StartDay  string `yaml:"start_day,omitempty"`
	EndDay    string `yaml:"end_day,omitempty"`
	StartTime string `yaml:"start_time,omitempty"`
	EndTime   string `yaml:"end_time,omitempty"`

	EnvValues []string `yaml:"env_values,omitempty"`

	MinDependents int `yaml:"min_dependents,omitempty"`
}

func buildPredicate(doc predicateDoc) (Predicate, error) {
	switch doc.Kind {
	case KindTagMatch:
		if doc.Key == "" {
			return nil, fmt.Errorf("tag_match: key is required")
		}
		return &tagMatchPredicate{key: doc.Key, value: doc.Value, actions: toActionSet(doc.Actions)}, nil

	case KindActionIn:
		if len(doc.Actions) == 0 {
			return nil, fmt.Errorf("action_in: actions is required")
		}
		return &actionInPredicate{actions: toActionSet(doc.Actions)}, nil

	case KindTimeWindow:
		return buildTimeWindowPredicate(doc)

	case KindResourceTypeIn:
		if len(doc.Types) == 0 {
			return nil, fmt.Errorf("resource_type_in: types is required")
		}
		set := make(map[string]bool, len(doc.Types))
		for _, t := range doc.Types {
			set[t] = true
		}
		return &resourceTypeInPredicate{types: set}, nil

	case KindEnvRequiresReview:
		values := doc.EnvValues
		if len(values) == 0 {
			values = []string{"production", "prod"}
		}
		set := make(map[string]bool, len(values))
		for _, v := range values {
			set[strings.ToLower(v)] = true
		}
		return &envRequiresReviewPredicate{values: set}, nil

	case KindMinDependents:
		if doc.MinDependents <= 0 {
			return nil, fmt.Errorf("min_dependents: min_dependents must be positive")
		}
		return &minDependentsPredicate{min: doc.MinDependents}, nil

	default:
		return nil, fmt.Errorf("unknown predicate kind %q", doc.Kind)
	}
}

func toActionSet(actions []string) map[model.ActionType]bool {
	set := make(map[model.ActionType]bool, len(actions))
	for _, a := range actions {
		set[model.ActionType(a)] = true
	}
	return set
}

// --- tag_match ---

type tagMatchPredicate struct {
	key     string
	value   string
	actions map[model.ActionType]bool // empty means "any action"
}

func (p *tagMatchPredicate) Kind() Kind { return KindTagMatch }

func (p *tagMatchPredicate) Evaluate(action *model.ProposedAction, target *model.Resource) (bool, string) {
	if len(p.actions) > 0 && !p.actions[action.ActionType] {
		return false, ""
	}
	if target == nil {
		return false, ""
	}
	if target.Tags[p.key] != p.value {
		return false, ""
	}
	return true, fmt.Sprintf("target tag %s=%s matches", p.key, p.value)
}

// --- action_in ---

type actionInPredicate struct {
	actions map[model.ActionType]bool
}

func (p *actionInPredicate) Kind() Kind { return KindActionIn }

func (p *actionInPredicate) Evaluate(action *model.ProposedAction, target *model.Resource) (bool, string) {
	if p.actions[action.ActionType] {
		return true, fmt.Sprintf("action_type %s is restricted", action.ActionType)
	}
	return false, ""
}

// --- time_window ---

// timeWindowPredicate fires when the action's timestamp (UTC) falls inside a
// recurring weekly window. Weekdays are numbered ISO-style, Monday=0 through
// Sunday=6, so a week is a circular range of 7*86400 seconds; windows that
// cross the Sunday->Monday boundary (or span multiple days generally) are
// modeled as a wrap around that circle. Start is inclusive, end exclusive.
type timeWindowPredicate struct {
	startSec int // seconds into the ISO week
	endSec   int
}

func isoWeekday(d time.Weekday) int {
	// time.Weekday: Sunday=0 ... Saturday=6. Remap to Monday=0 ... Sunday=6.
	return (int(d) + 6) % 7
}

var dayNames = map[string]int{
	"monday": 0, "tuesday": 1, "wednesday": 2, "thursday": 3,
	"friday": 4, "saturday": 5, "sunday": 6,
}

func parseDaySeconds(day, clock string) (int, error) {
	dayIdx, ok := dayNames[strings.ToLower(day)]
	if !ok {
		return 0, fmt.Errorf("time_window: invalid day %q", day)
	}
	parts := strings.Split(clock, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("time_window: invalid time %q", clock)
	}
	var h, m, s int
	if _, err := fmt.Sscanf(parts[0], "%d", &h); err != nil {
		return 0, fmt.Errorf("time_window: invalid hour in %q", clock)
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &m); err != nil {
		return 0, fmt.Errorf("time_window: invalid minute in %q", clock)
	}
	if len(parts) == 3 {
		if _, err := fmt.Sscanf(parts[2], "%d", &s); err != nil {
			return 0, fmt.Errorf("time_window: invalid second in %q", clock)
		}
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || s < 0 || s > 59 {
		return 0, fmt.Errorf("time_window: time %q out of range", clock)
	}
	return dayIdx*86400 + h*3600 + m*60 + s, nil
}

func buildTimeWindowPredicate(doc predicateDoc) (Predicate, error) {
	if doc.StartDay == "" || doc.StartTime == "" || doc.EndTime == "" {
		return nil, fmt.Errorf("time_window: start_day, start_time, and end_time are required")
	}
	endDay := doc.EndDay
	if endDay == "" {
		endDay = doc.StartDay
	}
	start, err := parseDaySeconds(doc.StartDay, doc.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseDaySeconds(endDay, doc.EndTime)
	if err != nil {
		return nil, err
	}
	if start == end {
		return nil, fmt.Errorf("time_window: start and end must differ")
	}
	return &timeWindowPredicate{startSec: start, endSec: end}, nil
}

func (p *timeWindowPredicate) Kind() Kind { return KindTimeWindow }

func (p *timeWindowPredicate) Evaluate(action *model.ProposedAction, target *model.Resource) (bool, string) {
	ts := action.Timestamp.UTC()
	sec := isoWeekday(ts.Weekday())*86400 + ts.Hour()*3600 + ts.Minute()*60 + ts.Second()

	var fired bool
	if p.startSec < p.endSec {
		fired = sec >= p.startSec && sec < p.endSec
	} else {
		// Wraps across the end of the week cycle.
		fired = sec >= p.startSec || sec < p.endSec
	}
	if !fired {
		return false, ""
	}
	return true, fmt.Sprintf("action timestamp %s falls inside the restricted change window", ts.Format(time.RFC3339))
}

// --- resource_type_in ---

type resourceTypeInPredicate struct {
	types map[string]bool
}

func (p *resourceTypeInPredicate) Kind() Kind { return KindResourceTypeIn }

func (p *resourceTypeInPredicate) Evaluate(action *model.ProposedAction, target *model.Resource) (bool, string) {
	if p.types[action.Target.ResourceType] {
		return true, fmt.Sprintf("resource_type %s is restricted", action.Target.ResourceType)
	}
	return false, ""
}

// --- env_requires_review ---

type envRequiresReviewPredicate struct {
	values map[string]bool
}

func (p *envRequiresReviewPredicate) Kind() Kind { return KindEnvRequiresReview }

func (p *envRequiresReviewPredicate) Evaluate(action *model.ProposedAction, target *model.Resource) (bool, string) {
	if target == nil {
		return false, ""
	}
	env := strings.ToLower(target.Environment())
	if env != "" && p.values[env] {
		return true, fmt.Sprintf("target environment %q requires review", env)
	}
	return false, ""
}

// --- min_dependents ---

type minDependentsPredicate struct {
	min int
}

func (p *minDependentsPredicate) Kind() Kind { return KindMinDependents }

func (p *minDependentsPredicate) Evaluate(action *model.ProposedAction, target *model.Resource) (bool, string) {
	if target == nil || !action.ActionType.IsDestructive() {
		return false, ""
	}
	if len(target.Dependents) >= p.min {
		return true, fmt.Sprintf("%d dependents (>= %d) with a destructive action", len(target.Dependents), p.min)
	}
	return false, ""
}
