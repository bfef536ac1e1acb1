package daemon

import (
	"fmt"

	"cloudpush/internal/stats"
)

func statsRecord(i int) stats.RecentPushRecord {
	return stats.RecentPushRecord{
		Timestamp:  fmt.Sprintf("2024-05-01 12:%02d:00", i),
		Title:      fmt.Sprintf("push-%d", i),
		TargetPath: fmt.Sprintf("/media/%d.mkv", i),
		Success:    i%2 == 0,
	}
}
