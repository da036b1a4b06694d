package tools

import (
	"context"
	"fmt"
	"time"
)

// NewCurrentTimeTool reports the current wall-clock time shifted by
// offsetHours from UTC, the zone the monitored cluster logs in.
func NewCurrentTimeTool(offsetHours int) Tool {
	zone := time.FixedZone(fmt.Sprintf("UTC%+d", offsetHours), offsetHours*3600)
	return Tool{
		Name: "current_time",
		Description: fmt.Sprintf(
			"Get the current time in UTC%+d timezone. "+
				"Use this to anchor time ranges for log and metric queries.", offsetHours),
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(_ context.Context, _ map[string]any) (any, error) {
			return map[string]any{
				"status":       "success",
				"current_time": time.Now().In(zone).Format("2006-01-02 15:04:05"),
			}, nil
		},
	}
}
