package repository

import "fmt"

// Cache keys are bucket-scoped: one key per backend list query.
func RequestKey(bucket string) string {
	return fmt.Sprintf("requests:%s", bucket)
}

func BookingKey(status string) string {
	return fmt.Sprintf("bookings:%s", status)
}
