package timeline

// BuildTemporarySlots turns each annotated event into a provisional slot,
// categorized by its activity.
func BuildTemporarySlots(events []AnnotatedEvent) []TemporaryTimeSlot {
	slots := make([]TemporaryTimeSlot, 0, len(events))
	for _, event := range events {
		end := event.End
		location := event.Location
		slots = append(slots, TemporaryTimeSlot{
			Start:    event.Start,
			End:      &end,
			Category: CategoryForActivity(event.Type),
			Location: &location,
			Activity: event.Type,
		})
	}
	return slots
}
