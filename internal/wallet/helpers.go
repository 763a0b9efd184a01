package wallet

import "time"

func daysToDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
