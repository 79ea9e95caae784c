// Package merge reconciles device submissions into a shared per-day,
// per-source aggregate. Each device owns its slice of every day: a
// resubmission replaces that device's numbers wholesale, so replaying the
// same payload is a no-op and two devices never double-count each other.
package merge

import (
	"errors"
	"fmt"

	"github.com/tokgraph/tokgraph/internal/model"
)

// Aggregate is the merged state for one user: date -> source -> breakdown.
type Aggregate = map[string]map[string]*model.SourceBreakdown

// ErrConcurrentMerge means another merge for the same user is in flight.
var ErrConcurrentMerge = errors.New("concurrent merge in progress")

// ConsistencyError rejects a submission whose internal counters do not
// add up. The whole submission is refused; no partial state is applied.
type ConsistencyError struct {
	Date   string
	Source string
	Detail string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("inconsistent submission for %s/%s: %s", e.Date, e.Source, e.Detail)
}

// Apply merges a device submission into the prior aggregate and returns
// the new state. The prior aggregate is never mutated. Rules:
//
//   - the submission is validated up front; any imbalance rejects all of it
//   - pre-device totals found without device attribution are preserved
//     under the legacy device before merging
//   - the device's data for each (day, source) it reports is replaced
//   - on days the submission covers, sources it omits lose that device's
//     prior entry
//   - sources and days left with no devices disappear
func Apply(prior Aggregate, sub model.Submission) (Aggregate, error) {
	if sub.DeviceID == "" {
		return nil, &ConsistencyError{Detail: "missing device id"}
	}
	if err := validate(sub); err != nil {
		return nil, err
	}

	next := clone(prior)
	captureLegacy(next)

	for date, sources := range sub.Days {
		day := next[date]
		if day == nil {
			day = make(map[string]*model.SourceBreakdown)
			next[date] = day
		}

		for source, data := range sources {
			sb := day[source]
			if sb == nil {
				sb = &model.SourceBreakdown{}
				day[source] = sb
			}
			if sb.Devices == nil {
				sb.Devices = make(map[string]model.DeviceSourceData)
			}
			sb.Devices[sub.DeviceID] = data.Clone()
		}

		// The device reported this day, so sources it no longer lists
		// were deleted locally and its prior entries must follow.
		for source, sb := range day {
			if _, reported := sources[source]; reported {
				continue
			}
			delete(sb.Devices, sub.DeviceID)
		}

		for source, sb := range day {
			if len(sb.Devices) == 0 {
				delete(day, source)
				continue
			}
			recompute(sb)
		}
		if len(day) == 0 {
			delete(next, date)
		}
	}

	return next, nil
}

func validate(sub model.Submission) error {
	for date, sources := range sub.Days {
		for source, data := range sources {
			if err := checkCounters(date, source, "", data.ModelBreakdown); err != nil {
				return err
			}
			var modelTokens int64
			for modelID, mb := range data.Models {
				if err := checkCounters(date, source, modelID, mb); err != nil {
					return err
				}
				modelTokens += mb.Tokens
			}
			if len(data.Models) > 0 && modelTokens != data.Tokens {
				return &ConsistencyError{Date: date, Source: source, Detail: "model totals do not sum to source total"}
			}
		}
	}
	return nil
}

// checkCounters rejects negative counters and token totals that do not
// match the per-kind fields. All counters are cumulative sums of
// non-negative usage, so a negative value can only be fabricated.
func checkCounters(date, source, modelID string, mb model.ModelBreakdown) error {
	subject := "source"
	if modelID != "" {
		subject = "model " + modelID
	}
	if mb.Input < 0 || mb.Output < 0 || mb.CacheRead < 0 || mb.CacheWrite < 0 ||
		mb.Reasoning < 0 || mb.Cost < 0 || mb.Messages < 0 {
		return &ConsistencyError{
			Date: date, Source: source,
			Detail: fmt.Sprintf("%s carries negative counters", subject),
		}
	}
	if !mb.Balanced() {
		return &ConsistencyError{
			Date: date, Source: source,
			Detail: fmt.Sprintf("%s token total does not match breakdown", subject),
		}
	}
	return nil
}

func clone(prior Aggregate) Aggregate {
	next := make(Aggregate, len(prior))
	for date, sources := range prior {
		day := make(map[string]*model.SourceBreakdown, len(sources))
		for source, sb := range sources {
			day[source] = sb.Clone()
		}
		next[date] = day
	}
	return next
}

// captureLegacy moves totals persisted before device tracking under the
// synthetic legacy device, so they survive device-scoped replacement.
func captureLegacy(agg Aggregate) {
	for _, sources := range agg {
		for _, sb := range sources {
			if len(sb.Devices) > 0 || sb.Tokens == 0 && sb.Cost == 0 && sb.Messages == 0 {
				continue
			}
			legacy := model.DeviceSourceData{ModelBreakdown: sb.ModelBreakdown}
			if sb.Models != nil {
				legacy.Models = make(map[string]model.ModelBreakdown, len(sb.Models))
				for k, v := range sb.Models {
					legacy.Models[k] = v
				}
			}
			sb.Devices = map[string]model.DeviceSourceData{model.LegacyDeviceID: legacy}
		}
	}
}

// recompute rebuilds the derived source totals from the device map.
func recompute(sb *model.SourceBreakdown) {
	sb.ModelBreakdown = model.ModelBreakdown{}
	sb.Models = make(map[string]model.ModelBreakdown)
	for _, device := range sb.Devices {
		sb.Add(device.ModelBreakdown)
		for modelID, mb := range device.Models {
			agg := sb.Models[modelID]
			agg.Add(mb)
			sb.Models[modelID] = agg
		}
	}
}
