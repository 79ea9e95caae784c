package aggregator

import "github.com/tokgraph/tokgraph/internal/model"

// BuildSubmission folds messages into the per-day, per-source payload a
// device sends to a reconciliation target. Every counter in the payload is
// attributed to the given device.
func BuildSubmission(deviceID string, msgs []model.UnifiedMessage) model.Submission {
	days := make(map[string]map[string]model.DeviceSourceData)
	for _, msg := range msgs {
		sources := days[msg.Date]
		if sources == nil {
			sources = make(map[string]model.DeviceSourceData)
			days[msg.Date] = sources
		}
		data := sources[msg.Source]
		if data.Models == nil {
			data.Models = make(map[string]model.ModelBreakdown)
		}
		data.AddMessage(msg)
		mb := data.Models[msg.ModelID]
		mb.AddMessage(msg)
		data.Models[msg.ModelID] = mb
		sources[msg.Source] = data
	}
	return model.Submission{DeviceID: deviceID, Days: days}
}
