package domain

// Models lists every persisted model in migration order
func Models() []any {
	return []any{
		&User{},
		&TripProposal{},
		&Participation{},
		&Message{},
		&Meetup{},
		&TimeEntry{},
		&DailyAdjustment{},
	}
}
